package bpdu

import (
	"encoding/binary"
	"fmt"

	"github.com/mstpgo/mstpd/pkg/model"
)

// Frame is a fixed-capacity scratch buffer for an outgoing BPDU. Callers own
// it and reuse it across transmissions, so the encoder never allocates.
type Frame struct {
	buf [MaxFrameLen]byte
	n   int
}

// Bytes returns the encoded frame (LLC header + BPDU fields).
func (f *Frame) Bytes() []byte { return f.buf[:f.n] }

// EncodeTCN writes a TCN BPDU into f.
func (f *Frame) EncodeTCN() {
	f.n = 3 + MinLenTCN
	copy(f.buf[0:3], llcHeader[:])
	binary.BigEndian.PutUint16(f.buf[3:5], ProtocolIdentifier)
	f.buf[5] = VersionSTP
	f.buf[6] = TypeTCN
}

// ConfigFields carries everything EncodeConfig needs; it mirrors
// ReceivedBPDU's CIST fields so round-tripping is direct.
type ConfigFields struct {
	Version          uint8 // VersionSTP or VersionRSTP
	Flags            Flags
	Root             model.BridgeIdentifier
	ExternalPathCost uint32
	BridgeID         model.BridgeIdentifier
	PortID           model.PortIdentifier
	Times            model.Times
}

// EncodeConfig writes a Config (version 0) or RST (version 2) BPDU into f.
func (f *Frame) EncodeConfig(c ConfigFields) {
	kind := TypeConfig
	length := 3 + MinLenConfig
	if c.Version == VersionRSTP {
		kind = TypeRST
		length = 3 + MinLenRST
	}
	f.n = length
	copy(f.buf[0:3], llcHeader[:])
	p := f.buf[3:]
	binary.BigEndian.PutUint16(p[0:2], ProtocolIdentifier)
	p[2] = c.Version
	p[3] = uint8(kind)
	p[4] = byte(c.Flags)
	rb := c.Root.Bytes()
	copy(p[5:13], rb[:])
	binary.BigEndian.PutUint32(p[13:17], c.ExternalPathCost)
	bb := c.BridgeID.Bytes()
	copy(p[17:25], bb[:])
	pb := c.PortID.Bytes()
	copy(p[25:27], pb[:])
	binary.BigEndian.PutUint16(p[27:29], encodeTimeValue(c.Times.MessageAge))
	binary.BigEndian.PutUint16(p[29:31], encodeTimeValue(c.Times.MaxAge))
	binary.BigEndian.PutUint16(p[31:33], encodeTimeValue(c.Times.HelloTime))
	binary.BigEndian.PutUint16(p[33:35], encodeTimeValue(c.Times.ForwardDelay))
	p[35] = 0 // Version 1 length, always 0
}

// MSTFields carries everything EncodeMST needs. MSTI records are always
// written in MSTID-ascending order regardless of input order.
type MSTFields struct {
	ConfigFields
	ConfigName           [ConfigNameLen]byte
	ConfigNameLen        uint8
	ConfigRevision       uint16
	ConfigDigest         model.ConfigurationDigest
	InternalRootPathCost uint32
	CISTBridgeID         model.BridgeIdentifier
	RemainingHops        uint8
	MSTI                 []MSTIRecord
}

// EncodeMST writes an MST BPDU into f, sorting MSTI by MSTID first.
func (f *Frame) EncodeMST(m MSTFields) error {
	sorted := append([]MSTIRecord(nil), m.MSTI...)
	sortMSTIByID(sorted)

	k := len(sorted)
	total := MinLenMSTBase + k*MSTIRecordLen
	if 3+total > MaxFrameLen {
		return fmt.Errorf("%w: MST BPDU with %d MSTI records exceeds max frame length", model.ErrMalformedFrame, k)
	}
	f.n = 3 + total
	copy(f.buf[0:3], llcHeader[:])
	p := f.buf[3:]
	binary.BigEndian.PutUint16(p[0:2], ProtocolIdentifier)
	p[2] = VersionMSTP
	p[3] = TypeRST
	p[4] = byte(m.Flags)
	rb := m.Root.Bytes()
	copy(p[5:13], rb[:])
	binary.BigEndian.PutUint32(p[13:17], m.ExternalPathCost)
	bb := m.BridgeID.Bytes()
	copy(p[17:25], bb[:])
	pb := m.PortID.Bytes()
	copy(p[25:27], pb[:])
	binary.BigEndian.PutUint16(p[27:29], encodeTimeValue(m.Times.MessageAge))
	binary.BigEndian.PutUint16(p[29:31], encodeTimeValue(m.Times.MaxAge))
	binary.BigEndian.PutUint16(p[31:33], encodeTimeValue(m.Times.HelloTime))
	binary.BigEndian.PutUint16(p[33:35], encodeTimeValue(m.Times.ForwardDelay))
	p[35] = 0
	binary.BigEndian.PutUint16(p[36:38], uint16(64+k*MSTIRecordLen))
	p[38] = 0 // MST Config Format Selector
	p[39] = m.ConfigNameLen
	copy(p[40:72], m.ConfigName[:])
	binary.BigEndian.PutUint16(p[72:74], m.ConfigRevision)
	copy(p[74:90], m.ConfigDigest[:])
	binary.BigEndian.PutUint32(p[90:94], m.InternalRootPathCost)
	cb := m.CISTBridgeID.Bytes()
	copy(p[94:102], cb[:])
	p[102] = m.RemainingHops

	off := MinLenMSTBase
	for _, rec := range sorted {
		b := p[off : off+MSTIRecordLen]
		b[0] = byte(rec.Flags)
		rrb := rec.RegionalRootID.Bytes()
		copy(b[1:9], rrb[:])
		binary.BigEndian.PutUint32(b[9:13], rec.InternalPathCost)
		b[13] = rec.BridgeIDPriority
		b[14] = rec.PortIDPriority
		b[15] = rec.RemainingHops
		off += MSTIRecordLen
	}
	return nil
}

func sortMSTIByID(recs []MSTIRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].MSTIDOf() > recs[j].MSTIDOf(); j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}
}
