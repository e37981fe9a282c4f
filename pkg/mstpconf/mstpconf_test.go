package mstpconf

import (
	"strings"
	"testing"

	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBridge(t *testing.T) {
	in := `
# bridge br0
mode mstp
max-age 20
forward-delay 15
hello 2
tx-hold-count 6
confid 7 region-one
prio 4096
mstid 10
prio 8192
vids 100-199,300
mstid 20
vids 200-299
`
	bf, err := ParseBridge(strings.NewReader(in), "br0.conf")
	require.NoError(t, err)

	require.True(t, bf.Bridge.ModeSet)
	assert.Equal(t, model.VersionMSTP, bf.Bridge.Mode)
	assert.Equal(t, uint8(20), bf.Bridge.MaxAge)
	assert.Equal(t, uint8(15), bf.Bridge.ForwardDelay)
	assert.Equal(t, uint8(2), bf.Bridge.HelloTime)
	assert.Equal(t, uint8(6), bf.Bridge.TxHoldCount)
	require.True(t, bf.Bridge.ConfigNameSet)
	assert.Equal(t, "region-one", bf.Bridge.ConfigName)
	assert.Equal(t, uint16(7), bf.Bridge.ConfigRevision)
	require.True(t, bf.Bridge.PrioritySet)
	assert.Equal(t, uint16(4096), bf.Bridge.Priority)

	assert.Equal(t, []model.MSTID{10, 20}, bf.MSTIDs)
	require.Len(t, bf.Trees, 1)
	assert.Equal(t, model.MSTID(10), bf.Trees[0].MSTID)
	assert.Equal(t, uint16(8192), bf.Trees[0].Priority)

	require.True(t, bf.VIDToMSTIDSet)
	assert.Equal(t, model.MSTID(10), bf.VIDToMSTID[100])
	assert.Equal(t, model.MSTID(10), bf.VIDToMSTID[199])
	assert.Equal(t, model.MSTID(10), bf.VIDToMSTID[300])
	assert.Equal(t, model.MSTID(20), bf.VIDToMSTID[250])
	assert.Equal(t, model.CIST, bf.VIDToMSTID[1])
}

func TestParseBridgeRejectsUnknownKey(t *testing.T) {
	_, err := ParseBridge(strings.NewReader("bogus 1\n"), "br0.conf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "br0.conf:1")
}

func TestParseBridgeRejectsBadMode(t *testing.T) {
	_, err := ParseBridge(strings.NewReader("mode pvst\n"), "br0.conf")
	require.Error(t, err)
}

func TestParsePort(t *testing.T) {
	in := `
admin-edge yes
auto-edge no
p2p auto
bpdu-guard yes
ext-cost 20000
prio 128
mstid 10
prio 32
int-cost 555
`
	pf, err := ParsePort(strings.NewReader(in), "eth0.conf")
	require.NoError(t, err)

	assert.True(t, pf.Port.AdminEdge)
	require.True(t, pf.Port.AutoEdgeSet)
	assert.False(t, pf.Port.AutoEdge)
	assert.Equal(t, model.P2PAuto, pf.Port.P2P)
	assert.True(t, pf.Port.BPDUGuard)
	assert.Equal(t, uint32(20000), pf.Port.ExternalCost)
	assert.Equal(t, uint8(128), pf.Port.Priority)

	require.Len(t, pf.Trees, 1)
	assert.Equal(t, model.MSTID(10), pf.Trees[0].MSTID)
	assert.Equal(t, uint8(32), pf.Trees[0].Priority)
	assert.Equal(t, uint32(555), pf.Trees[0].InternalCost)
}

func TestParsePortRejectsBadYesNo(t *testing.T) {
	_, err := ParsePort(strings.NewReader("admin-edge maybe\n"), "eth0.conf")
	require.Error(t, err)
}

// TestVIDsRoundTrip exercises the enc/dec pair over representative tables:
// decode(encode(m)) must reproduce m for every MSTID m uses.
func TestVIDsRoundTrip(t *testing.T) {
	var table model.VIDToMSTIDTable
	require.NoError(t, DecodeVIDs(&table, "1-99", 5))
	require.NoError(t, DecodeVIDs(&table, "100", 7))
	require.NoError(t, DecodeVIDs(&table, "101-4094", 5))
	require.NoError(t, DecodeVIDs(&table, "2000-2004,2006", 7))

	for _, mstid := range []model.MSTID{0, 5, 7} {
		enc := EncodeVIDs(table, mstid)
		var redec model.VIDToMSTIDTable
		// seed with a sentinel so only decoded entries match
		for v := range redec {
			redec[v] = 4001
		}
		if enc != "" {
			require.NoError(t, DecodeVIDs(&redec, enc, mstid))
		}
		for v := 0; v <= int(model.MaxVID); v++ {
			want := table[v] == mstid
			got := redec[v] == mstid
			require.Equal(t, want, got, "mstid %d vid %d (enc %q)", mstid, v, enc)
		}
	}
}

func TestVIDsEncodeRuns(t *testing.T) {
	var table model.VIDToMSTIDTable
	require.NoError(t, DecodeVIDs(&table, "10-12,20,30-31", 3))
	assert.Equal(t, "10-12,20,30-31", EncodeVIDs(table, 3))
}

func TestDecodeVIDsRejectsDescendingRange(t *testing.T) {
	var table model.VIDToMSTIDTable
	require.Error(t, DecodeVIDs(&table, "20-10", 1))
	require.Error(t, DecodeVIDs(&table, "1,,2", 1))
	require.Error(t, DecodeVIDs(&table, "abc", 1))
}

func TestDecodeVIDsSaturatesAt4094(t *testing.T) {
	var table model.VIDToMSTIDTable
	require.NoError(t, DecodeVIDs(&table, "4000-9999", 2))
	assert.Equal(t, model.MSTID(2), table[4094])
	assert.Equal(t, model.CIST, table[4095])
}
