package bpdu

import (
	"encoding/binary"
	"fmt"

	"github.com/mstpgo/mstpd/pkg/model"
)

// Decode validates and parses buf, which must hold the LLC header (3 bytes,
// 42 42 03) immediately followed by the BPDU fields of IEEE 802.1Q (i.e. the
// Ethernet destination/source/length fields have already been stripped by
// the caller — pkg/netif/bpdutx owns that framing). It returns
// model.ErrMalformedFrame (wrapped with detail) for any validation failure.
func Decode(buf []byte) (*ReceivedBPDU, error) {
	if len(buf) > MaxFrameLen {
		return nil, fmt.Errorf("%w: frame too large (%d bytes)", model.ErrMalformedFrame, len(buf))
	}
	if err := validateLLC(buf); err != nil {
		return nil, err
	}
	p := buf[3:]
	if len(p) < 4 {
		return nil, fmt.Errorf("%w: truncated before BPDU type", model.ErrMalformedFrame)
	}
	protoID := binary.BigEndian.Uint16(p[0:2])
	if protoID != ProtocolIdentifier {
		return nil, fmt.Errorf("%w: unknown protocol identifier %#04x", model.ErrMalformedFrame, protoID)
	}
	version := p[2]
	bpduType := p[3]

	switch {
	case version == VersionSTP && bpduType == TypeTCN:
		return decodeTCN(p)
	case version == VersionSTP && bpduType == TypeConfig:
		return decodeConfig(p, KindConfig, version)
	case version == VersionRSTP && bpduType == TypeRST:
		return decodeConfig(p, KindRST, version)
	case version == VersionMSTP && bpduType == TypeRST:
		return decodeMST(p)
	default:
		return nil, fmt.Errorf("%w: unknown version/type %d/%#02x", model.ErrMalformedFrame, version, bpduType)
	}
}

func decodeTCN(p []byte) (*ReceivedBPDU, error) {
	if len(p) < MinLenTCN {
		return nil, fmt.Errorf("%w: TCN BPDU too short (%d bytes)", model.ErrMalformedFrame, len(p))
	}
	return &ReceivedBPDU{Kind: KindTCN, Version: p[2]}, nil
}

// decodeConfig parses a Config (version 0) or RST (version 2) BPDU; the two
// share a layout up to the Version 1 length byte at offset 35, which is the
// minimum length for both (RST carries it too, just always zero).
func decodeConfig(p []byte, kind Kind, version uint8) (*ReceivedBPDU, error) {
	minLen := MinLenConfig
	if kind == KindRST {
		minLen = MinLenRST
	}
	if len(p) < minLen {
		return nil, fmt.Errorf("%w: Config/RST BPDU too short (%d < %d)", model.ErrMalformedFrame, len(p), minLen)
	}
	r := &ReceivedBPDU{Kind: kind, Version: version}
	r.CISTFlags = Flags(p[4])
	r.CISTRoot = model.BridgeIdentifierFromBytes(p[5:13])
	r.CISTExternalPathCost = binary.BigEndian.Uint32(p[13:17])
	r.CISTRegionalRootOrLegacyBridgeID = model.BridgeIdentifierFromBytes(p[17:25])
	r.CISTPortID = model.PortIdentifierFromBytes(p[25:27])
	r.CISTTimes = model.Times{
		MessageAge:   decodeTimeValue(binary.BigEndian.Uint16(p[27:29])),
		MaxAge:       decodeTimeValue(binary.BigEndian.Uint16(p[29:31])),
		HelloTime:    decodeTimeValue(binary.BigEndian.Uint16(p[31:33])),
		ForwardDelay: decodeTimeValue(binary.BigEndian.Uint16(p[33:35])),
	}
	return r, nil
}

func decodeMST(p []byte) (*ReceivedBPDU, error) {
	if len(p) < MinLenMSTBase {
		return nil, fmt.Errorf("%w: MST BPDU too short (%d < %d)", model.ErrMalformedFrame, len(p), MinLenMSTBase)
	}
	r := &ReceivedBPDU{Kind: KindMST, Version: VersionMSTP}
	r.CISTFlags = Flags(p[4])
	r.CISTRoot = model.BridgeIdentifierFromBytes(p[5:13])
	r.CISTExternalPathCost = binary.BigEndian.Uint32(p[13:17])
	r.CISTRegionalRootOrLegacyBridgeID = model.BridgeIdentifierFromBytes(p[17:25])
	r.CISTPortID = model.PortIdentifierFromBytes(p[25:27])
	r.CISTTimes = model.Times{
		MessageAge:   decodeTimeValue(binary.BigEndian.Uint16(p[27:29])),
		MaxAge:       decodeTimeValue(binary.BigEndian.Uint16(p[29:31])),
		HelloTime:    decodeTimeValue(binary.BigEndian.Uint16(p[31:33])),
		ForwardDelay: decodeTimeValue(binary.BigEndian.Uint16(p[33:35])),
	}
	r.V3Len = binary.BigEndian.Uint16(p[36:38])

	if int(r.V3Len) < 64 {
		return nil, fmt.Errorf("%w: v3len %d too small", model.ErrMalformedFrame, r.V3Len)
	}
	k := (int(r.V3Len) - 64) / MSTIRecordLen
	rem := (int(r.V3Len) - 64) % MSTIRecordLen
	if rem != 0 || k < 0 {
		return nil, fmt.Errorf("%w: v3len %d does not divide into whole MSTI records", model.ErrMalformedFrame, r.V3Len)
	}
	wantLen := MinLenMSTBase + k*MSTIRecordLen
	if len(p) < wantLen {
		return nil, fmt.Errorf("%w: MST BPDU truncated, need %d have %d", model.ErrMalformedFrame, wantLen, len(p))
	}

	r.ConfigNameLen = p[39] // format selector is p[38] (always 0), name length is p[39]
	copy(r.ConfigName[:], p[40:72])
	r.ConfigRevision = binary.BigEndian.Uint16(p[72:74])
	copy(r.ConfigDigest[:], p[74:90])
	r.CISTInternalRootPathCost = binary.BigEndian.Uint32(p[90:94])
	r.CISTBridgeID = model.BridgeIdentifierFromBytes(p[94:102])
	r.CISTRemainingHops = p[102]

	r.MSTI = make([]MSTIRecord, 0, k)
	off := MinLenMSTBase // remaining-hops octet at 102, MSTI records start at 103
	for i := 0; i < k; i++ {
		b := p[off : off+MSTIRecordLen]
		rec := MSTIRecord{
			Flags:            Flags(b[0]),
			InternalPathCost: binary.BigEndian.Uint32(b[9:13]),
			BridgeIDPriority: b[13],
			PortIDPriority:   b[14],
			RemainingHops:    b[15],
		}
		rec.RegionalRootID = model.BridgeIdentifierFromBytes(b[1:9])
		r.MSTI = append(r.MSTI, rec)
		off += MSTIRecordLen
	}
	return r, nil
}
