package bpdu

import (
	"net"
	"testing"

	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/stretchr/testify/require"
)

func testBridgeID(prio uint16, m byte) model.BridgeIdentifier {
	return model.NewBridgeIdentifier(prio, net.HardwareAddr{0xAA, 0xBB, 0xCC, 0, 0, m})
}

func TestRoundTripTCN(t *testing.T) {
	var f Frame
	f.EncodeTCN()
	r, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, KindTCN, r.Kind)
}

func TestRoundTripConfig(t *testing.T) {
	var f Frame
	cf := ConfigFields{
		Version:          VersionSTP,
		Flags:            FlagTC | FlagLearning | FlagForwarding | FlagAgreement,
		Root:             testBridgeID(0, 1),
		ExternalPathCost: 2000000,
		BridgeID:         testBridgeID(32768, 2),
		PortID:           model.PortIdentifier{Priority: 128, Number: 3},
		Times:            model.Times{MessageAge: 1, MaxAge: 20, HelloTime: 2, ForwardDelay: 15},
	}
	f.EncodeConfig(cf)
	r, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, KindConfig, r.Kind)
	require.Equal(t, cf.Root, r.CISTRoot)
	require.Equal(t, cf.ExternalPathCost, r.CISTExternalPathCost)
	require.Equal(t, cf.BridgeID, r.CISTRegionalRootOrLegacyBridgeID)
	require.Equal(t, cf.PortID, r.CISTPortID)
	require.Equal(t, cf.Times, r.CISTTimes)
	require.True(t, r.TC())
}

func TestRoundTripRST(t *testing.T) {
	var f Frame
	cf := ConfigFields{
		Version:  VersionRSTP,
		Flags:    FlagAgreement | FlagLearning | FlagForwarding,
		Root:     testBridgeID(0, 1),
		BridgeID: testBridgeID(4096, 2),
		PortID:   model.PortIdentifier{Priority: 128, Number: 5},
		Times:    model.Times{MessageAge: 0, MaxAge: 20, HelloTime: 2, ForwardDelay: 15},
	}
	f.EncodeConfig(cf)
	r, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, KindRST, r.Kind)
	require.True(t, r.Agreement())
	require.True(t, r.Learning())
	require.True(t, r.Forwarding())
}

func TestRoundTripMST(t *testing.T) {
	var f Frame
	mf := MSTFields{
		ConfigFields: ConfigFields{
			Version:  VersionMSTP,
			Root:     testBridgeID(0, 1),
			BridgeID: testBridgeID(4096, 2),
			PortID:   model.PortIdentifier{Priority: 128, Number: 7},
			Times:    model.Times{MaxAge: 20, HelloTime: 2, ForwardDelay: 15},
		},
		ConfigNameLen:  4,
		ConfigRevision: 1,
		RemainingHops:  20,
		CISTBridgeID:   testBridgeID(4096, 9),
	}
	copy(mf.ConfigName[:], "test")
	mf.MSTI = []MSTIRecord{
		{RegionalRootID: bridgeIDWithSysID(testBridgeID(0, 3), 2), InternalPathCost: 10, RemainingHops: 19},
		{RegionalRootID: bridgeIDWithSysID(testBridgeID(0, 3), 1), InternalPathCost: 20, RemainingHops: 19},
	}
	require.NoError(t, f.EncodeMST(mf))
	r, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, KindMST, r.Kind)
	require.Len(t, r.MSTI, 2)
	// MSTID-ascending after encode, regardless of input order.
	require.Equal(t, model.MSTID(1), r.MSTI[0].MSTIDOf())
	require.Equal(t, model.MSTID(2), r.MSTI[1].MSTIDOf())
	require.Equal(t, mf.ConfigDigest, r.ConfigDigest)
	require.Equal(t, mf.CISTBridgeID, r.CISTBridgeID)
}

func bridgeIDWithSysID(id model.BridgeIdentifier, sysID uint16) model.BridgeIdentifier {
	id.SysIDExt = sysID
	return id
}

func TestDecodeRejectsBadLLC(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0, 0, 0, 0}
	_, err := Decode(buf)
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	var f Frame
	f.EncodeConfig(ConfigFields{Version: VersionSTP})
	truncated := f.Bytes()[:10]
	_, err := Decode(truncated)
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestDecodeRejectsOversize(t *testing.T) {
	buf := make([]byte, MaxFrameLen+1)
	copy(buf, llcHeader[:])
	_, err := Decode(buf)
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestDecodeRejectsNonDivisibleMSTILength(t *testing.T) {
	var f Frame
	mf := MSTFields{ConfigFields: ConfigFields{Version: VersionMSTP}}
	require.NoError(t, f.EncodeMST(mf))
	buf := f.Bytes()
	// Corrupt v3len to something that doesn't divide evenly by 16.
	buf[3+36] = 0
	buf[3+37] = 70
	_, err := Decode(buf)
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}
