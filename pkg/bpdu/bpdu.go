// Package bpdu implements the BPDU codec: parsing and
// serialization of Config, TCN, RST and MST bridge protocol data units, with
// the strict validation the spec demands. It never allocates beyond a small
// bounded scratch buffer and rejects anything over 1500 bytes, matching the
// "no allocation on the hot reception path" discipline of IEEE 802.1Q — the
// decoder reads directly out of the caller-owned byte slice and the encoder
// writes into a caller-owned [MaxFrameLen]byte array.
package bpdu

import (
	"fmt"

	"github.com/mstpgo/mstpd/pkg/model"
)

// Kind identifies which of the four BPDU frame shapes a buffer holds.
type Kind int

const (
	KindConfig Kind = iota
	KindTCN
	KindRST
	KindMST
)

// Wire constants from IEEE 802.1Q
const (
	ProtocolIdentifier = 0x0000

	VersionSTP  = 0
	VersionRSTP = 2
	VersionMSTP = 3

	TypeConfig = 0x00
	TypeTCN    = 0x80
	TypeRST    = 0x02 // shared by RST and MST; version disambiguates

	MinLenConfig = 35
	MinLenTCN    = 4
	MinLenRST    = 36

	// MinLenMSTBase is the fixed-field length of an MST BPDU with zero MSTI
	// records: octets 0..102 inclusive (Remaining Hops is octet 102), so 103
	// bytes before the first MSTI record.
	MinLenMSTBase = 103 // k == 0
	MSTIRecordLen = 16

	MaxFrameLen = 1500

	ConfigNameLen = 32
)

// Flags are the CIST flags octet.
type Flags uint8

const (
	FlagTC Flags = 1 << iota
	FlagProposal
	FlagPortRoleBit0
	FlagPortRoleBit1
	FlagLearning
	FlagForwarding
	FlagAgreement
	FlagTCAck
)

// PortRole is the 2-bit role field packed into the flags octet.
type PortRole uint8

const (
	PortRoleUnknown PortRole = iota
	PortRoleAlternateOrBackup
	PortRoleRoot
	PortRoleDesignated
)

func (f Flags) Role() PortRole {
	return PortRole((f >> 2) & 0x3)
}

func withRole(f Flags, r PortRole) Flags {
	return (f &^ (FlagPortRoleBit0 | FlagPortRoleBit1)) | Flags(r&0x3)<<2
}

// WithRole returns f with its 2-bit port-role field replaced by r, for
// callers outside this package building an outgoing flags octet (PTX).
func (f Flags) WithRole(r PortRole) Flags { return withRole(f, r) }

// MSTIRecord is one MSTI Config Message: 16 bytes.
type MSTIRecord struct {
	Flags            Flags
	RegionalRootID   model.BridgeIdentifier // regional-root-id-priority-field + MAC
	InternalPathCost uint32
	BridgeIDPriority uint8 // top nibble only, packed with SysIDExt of bridgeID elsewhere
	PortIDPriority   uint8
	RemainingHops    uint8
}

// ReceivedBPDU is the typed, decoded form of any accepted frame.
type ReceivedBPDU struct {
	Kind    Kind
	Version uint8

	CISTFlags                        Flags
	CISTRoot                         model.BridgeIdentifier
	CISTExternalPathCost             uint32
	CISTRegionalRootOrLegacyBridgeID model.BridgeIdentifier // CIST Regional Root (MST) or legacy Bridge ID (RST/Config)
	CISTPortID                       model.PortIdentifier
	CISTTimes                        model.Times // MessageAge, MaxAge, HelloTime, ForwardDelay (x256 decoded already)

	V3Len uint16 // MST only

	ConfigNameLen  uint8
	ConfigName     [ConfigNameLen]byte
	ConfigRevision uint16
	ConfigDigest   model.ConfigurationDigest

	CISTInternalRootPathCost uint32
	CISTBridgeID             model.BridgeIdentifier
	CISTRemainingHops        uint8

	MSTI []MSTIRecord // MSTID-ascending, filled from regional-root-id.SysIDExt
}

func (r *ReceivedBPDU) tcAck() bool      { return r.CISTFlags&FlagTCAck != 0 }
func (r *ReceivedBPDU) tc() bool         { return r.CISTFlags&FlagTC != 0 }
func (r *ReceivedBPDU) proposal() bool   { return r.CISTFlags&FlagProposal != 0 }
func (r *ReceivedBPDU) agreement() bool  { return r.CISTFlags&FlagAgreement != 0 }
func (r *ReceivedBPDU) learning() bool   { return r.CISTFlags&FlagLearning != 0 }
func (r *ReceivedBPDU) forwarding() bool { return r.CISTFlags&FlagForwarding != 0 }

// TC reports the topology-change flag of the decoded frame.
func (r *ReceivedBPDU) TC() bool         { return r.tc() }
func (r *ReceivedBPDU) TCAck() bool      { return r.tcAck() }
func (r *ReceivedBPDU) Proposal() bool   { return r.proposal() }
func (r *ReceivedBPDU) Agreement() bool  { return r.agreement() }
func (r *ReceivedBPDU) Learning() bool   { return r.learning() }
func (r *ReceivedBPDU) Forwarding() bool { return r.forwarding() }

// MSTIDOf derives the MSTID a given MSTIRecord describes: it is packed into
// the low 12 bits of RegionalRootID's priority field by convention (the
// standard carries MSTID implicitly via message ordering plus the regional
// root's SysIDExt, which this codec mirrors into RegionalRootID.SysIDExt).
func (m MSTIRecord) MSTIDOf() model.MSTID {
	return model.MSTID(m.RegionalRootID.SysIDExt)
}

var (
	llcHeader = [3]byte{0x42, 0x42, 0x03}
)

func validateLLC(b []byte) error {
	if len(b) < 3 || b[0] != llcHeader[0] || b[1] != llcHeader[1] || b[2] != llcHeader[2] {
		return fmt.Errorf("%w: bad LLC header", model.ErrMalformedFrame)
	}
	return nil
}

func decodeTimeValue(raw uint16) uint8 {
	// times are carried on the wire multiplied by 256
	return uint8(raw / 256)
}

func encodeTimeValue(v uint8) uint16 {
	return uint16(v) * 256
}
