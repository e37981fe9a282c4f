package model

// Partial set-point structs: each field pairs with a Set flag, and only
// fields with Set==true are applied.

// BridgeConfig carries bridge-wide set-points.
type BridgeConfig struct {
	Mode            ProtocolVersion
	ModeSet         bool
	MaxAge          uint8
	MaxAgeSet       bool
	ForwardDelay    uint8
	ForwardDelaySet bool
	MaxHops         uint8
	MaxHopsSet      bool
	HelloTime       uint8
	HelloTimeSet    bool
	AgeingTime      uint32
	AgeingTimeSet   bool
	TxHoldCount     uint8
	TxHoldCountSet  bool
	Priority        uint16 // pre-quantisation; rounded to nearest 4096
	PrioritySet     bool
	ConfigName      string
	ConfigRevision  uint16
	ConfigNameSet   bool
}

// TreeConfig carries per-MSTI bridge-priority set-points (a bridge priority
// scoped to one tree, the config file's "mstid <id> ... prio" scope).
type TreeConfig struct {
	MSTID       MSTID
	Priority    uint16
	PrioritySet bool
}

// PortConfig carries per-port set-points.
type PortConfig struct {
	AdminEdge         bool
	AdminEdgeSet      bool
	AutoEdge          bool
	AutoEdgeSet       bool
	P2P               AdminP2P
	P2PSet            bool
	RestrictedRole    bool
	RestrictedRoleSet bool
	RestrictedTCN     bool
	RestrictedTCNSet  bool
	BPDUGuard         bool
	BPDUGuardSet      bool
	BPDUFilter        bool
	BPDUFilterSet     bool
	NetworkPort       bool
	NetworkPortSet    bool
	DontTxmt          bool
	DontTxmtSet       bool
	Priority          uint8 // pre-quantisation; rounded to nearest 16
	PrioritySet       bool
	InternalCost      uint32
	InternalCostSet   bool
	ExternalCost      uint32
	ExternalCostSet   bool
}

// PortTreeConfig carries per-(port,MSTI) set-points (internal path cost and
// port priority differ per tree, mirroring the "mstid ... int-cost" config scope.
type PortTreeConfig struct {
	MSTID           MSTID
	Priority        uint8
	PrioritySet     bool
	InternalCost    uint32
	InternalCostSet bool
}

// Configuration bounds, IEEE 802.1Q, grounded on mstpd_conf.c's
// MAX_MAX_AGE/MAX_FORWARD_DELAY/MAX_HOPS/MAX_HELLO/MAX_TX_HOLD_COUNT/
// MAX_BR_PRIO/MAX_PRT_PRIO/MAX_COST constants.
const (
	MaxMaxAge         = 255
	MaxForwardDelay   = 255
	MaxHopsLimit      = 255
	MaxHello          = 255
	MaxTxHoldCount    = 255
	MaxBridgePriority = 65535
	MaxPortPriority   = 240
	MinPathCost       = 1
	MaxPathCost       = 210000000

	BridgePriorityStep = 4096
	PortPriorityStep   = 16
)

// QuantizeBridgePriority rounds p to the nearest multiple of 4096, clamped to
// [0, 61440], matching the silent-rounding behavior of the reference daemon
// rather than rejecting an unaligned value.
func QuantizeBridgePriority(p uint16) (rounded uint16, changed bool) {
	if p > MaxBridgePriority {
		p = MaxBridgePriority
	}
	q := uint16((uint32(p) + BridgePriorityStep/2) / BridgePriorityStep * BridgePriorityStep)
	if q > 61440 {
		q = 61440
	}
	return q, q != p
}

// QuantizePortPriority rounds p to the nearest multiple of 16, clamped to
// [0, 240].
func QuantizePortPriority(p uint8) (rounded uint8, changed bool) {
	v := int(p)
	if v > MaxPortPriority {
		v = MaxPortPriority
	}
	q := ((v + PortPriorityStep/2) / PortPriorityStep) * PortPriorityStep
	if q > MaxPortPriority {
		q = MaxPortPriority
	}
	return uint8(q), uint8(q) != p
}
