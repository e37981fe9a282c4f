package model

// AdminP2P is the administrative point-to-point setting of a port.
type AdminP2P int

const (
	P2PAuto AdminP2P = iota
	P2PForceTrue
	P2PForceFalse
)

// ProtocolVersion selects which spanning tree variant a bridge runs.
type ProtocolVersion int

const (
	VersionSTP ProtocolVersion = iota
	VersionRSTP
	VersionMSTP
)

// Duplex is the operational link duplex mode reported by the adaptation
// layer (ethtool query, IEEE 802.1Q).
type Duplex int

const (
	DuplexUnknown Duplex = iota
	DuplexHalf
	DuplexFull
)

// Port is one kernel bridge port, identified by PortIdentifier within each
// tree it participates in. Mutation only happens through the Orchestrator.
type Port struct {
	Index int // arena index within the owning Bridge.Ports, stable for the port's lifetime

	Ident   PortIdentifier
	IfName  string
	IfIndex int // kernel interface index, the key netlink events arrive keyed on
	MAC     [6]byte
	Speed   uint32 // Mb/s, from ethtool
	Duplex  Duplex

	// Admin flags
	AdminEdge      bool
	AutoEdge       bool
	AdminP2P       AdminP2P
	RestrictedRole bool
	RestrictedTCN  bool
	BPDUGuard      bool
	BPDUFilter     bool
	NetworkPort    bool
	DontTxmt       bool

	// Operational
	PortEnabled bool
	OperP2P     bool
	OperEdge    bool
	NewInfoCist bool
	NewInfoMsti bool

	AdminExternalPathCost uint32 // 0 means "derive from Speed"
	TxCount               int    // tokens remaining this second, PTX / TxHoldCount
	EdgeDelayWhile        uint16
	MDelayWhile           uint16
	HelloWhen             uint16 // seconds until the next periodic hello is due, PTX

	// AdministrativelyShutByGuard is set when bpdu-guard fires:
	// the port stays Disabled until explicitly re-enabled by configuration.
	AdministrativelyShutByGuard bool

	// ForwardingStateCache mirrors the last forwarding state pushed to the
	// kernel per VID, so the Orchestrator can avoid redundant callbacks and
	// the CLI snapshot path (same thread, no lock) can read
	// it directly.
	ForwardingStateCache map[VID]ForwardingState

	// PPM/BDM shared per-port (not per-tree) state.
	SendRSTP      bool
	RcvdSTP       bool
	RcvdRSTP      bool
	McheckPending bool // set by the control socket "mcheck" opcode
}

// ForwardingState is the per-VID (or per-port, if the kernel lacks per-VLAN
// state) forwarding state pushed through the set_port_state callback.
type ForwardingState int

const (
	FwdDisabled ForwardingState = iota
	FwdBlocking
	FwdListening
	FwdLearning
	FwdForwarding
)

func (s ForwardingState) String() string {
	switch s {
	case FwdDisabled:
		return "disabled"
	case FwdBlocking:
		return "blocking"
	case FwdListening:
		return "listening"
	case FwdLearning:
		return "learning"
	case FwdForwarding:
		return "forwarding"
	default:
		return "unknown"
	}
}

// ExternalPathCost derives the path cost used on the CIST when
// AdminExternalPathCost is unset (0): the IEEE 802.1D-2004 Table 17-3
// speed-based default.
func (p *Port) ExternalPathCost() uint32 {
	if p.AdminExternalPathCost != 0 {
		return p.AdminExternalPathCost
	}
	return pathCostForSpeed(p.Speed)
}

func pathCostForSpeed(mbps uint32) uint32 {
	switch {
	case mbps == 0:
		return 200000000
	case mbps <= 10:
		return 2000000
	case mbps <= 100:
		return 200000
	case mbps <= 1000:
		return 20000
	case mbps <= 10000:
		return 2000
	case mbps <= 100000:
		return 200
	case mbps <= 1000000:
		return 20
	default:
		return 2
	}
}
