package machines

import (
	"net"
	"testing"

	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/sm"
	"github.com/stretchr/testify/require"
)

func testMAC(b byte) [6]byte { return [6]byte{0, 0, 0, 0, 0, b} }

func testHW(b byte) net.HardwareAddr {
	m := testMAC(b)
	return m[:]
}

func newEnabledPort(ifindex int, name string, number uint16) *model.Port {
	p := &model.Port{
		Ident:                model.PortIdentifier{Priority: 128, Number: number},
		IfName:               name,
		IfIndex:              ifindex,
		MAC:                  testMAC(byte(ifindex)),
		Speed:                1000,
		PortEnabled:          true,
		AutoEdge:             true,
		ForwardingStateCache: map[model.VID]model.ForwardingState{},
	}
	return p
}

func cistPTPOf(br *model.Bridge, p *model.Port) *model.PerTreePort {
	return br.CIST().Ports[p.Index]
}

// TestRoleSelectionElectsAtMostOneRoot exercises P3: of three neighbours with
// distinct priorities, the cheapest root-path wins Root and the others are
// Designated/Backup/Alternate, never two Roots.
func TestRoleSelectionElectsAtMostOneRoot(t *testing.T) {
	br := model.NewBridge(1, "br0", testMAC(1))
	br.Trees[0].BridgeID = model.NewBridgeIdentifier(32768, testHW(1))

	ports := make([]*model.Port, 3)
	for i := range ports {
		ports[i] = newEnabledPort(10+i, "eth0", uint16(i+1))
		br.AddPort(ports[i])
	}

	// Port 0 hears a strictly better root than us; ports 1 and 2 hear an
	// inferior root, so once we know the better root (via port 0) we become
	// Designated towards both of them.
	bestRoot := model.NewBridgeIdentifier(0, testHW(9))
	worseRoot := model.NewBridgeIdentifier(8192, testHW(10))

	cistPTPOf(br, ports[0]).PortPriority = model.RootPriorityVector{
		IsCIST: true, RootID: bestRoot, RegionalRootID: bestRoot,
		DesignatedBridgeID: bestRoot, DesignatedPortID: model.PortIdentifier{Priority: 128, Number: 1},
	}
	cistPTPOf(br, ports[0]).InfoIs = model.InfoReceived

	cistPTPOf(br, ports[1]).PortPriority = model.RootPriorityVector{
		IsCIST: true, RootID: worseRoot, RegionalRootID: worseRoot,
		DesignatedBridgeID: worseRoot, DesignatedPortID: model.PortIdentifier{Priority: 128, Number: 1},
	}
	cistPTPOf(br, ports[1]).InfoIs = model.InfoReceived

	cistPTPOf(br, ports[2]).PortPriority = model.RootPriorityVector{
		IsCIST: true, RootID: worseRoot, RegionalRootID: worseRoot,
		DesignatedBridgeID: worseRoot, DesignatedPortID: model.PortIdentifier{Priority: 128, Number: 1},
	}
	cistPTPOf(br, ports[2]).InfoIs = model.InfoReceived

	for _, p := range ports {
		cistPTPOf(br, p).Reselect = true
	}

	rs := &RoleSelection{Bridge: br, Tree: br.CIST()}
	for rs.Step() {
	}

	roots, designated, backups, alternates := 0, 0, 0, 0
	for _, p := range ports {
		switch cistPTPOf(br, p).SelectedRole {
		case model.RoleRoot:
			roots++
		case model.RoleDesignated:
			designated++
		case model.RoleBackup:
			backups++
		case model.RoleAlternate:
			alternates++
		}
	}
	require.Equal(t, 1, roots, "exactly one root port")
	require.Equal(t, bestRoot, br.CIST().RootPriority.RootID)
	require.Equal(t, 2, designated, "the other two ports relay our now-better root")
	require.Equal(t, 0, backups+alternates)
}

// TestAlternateBackupNeverForwards exercises P4: a PTP whose role is
// Alternate or Backup must never reach Forwarding regardless of how many
// ticks elapse.
func TestAlternateBackupNeverForwards(t *testing.T) {
	br := model.NewBridge(1, "br0", testMAC(1))
	p := newEnabledPort(10, "eth0", 1)
	br.AddPort(p)
	ptp := cistPTPOf(br, p)
	ptp.Selected = true
	ptp.SelectedRole = model.RoleAlternate

	prt := &PortRoleTransitions{Bridge: br, Port: p, Tree: br.CIST(), PTP: ptp}
	for i := 0; i < 2000; i++ {
		ApplyPortTick(br, p, []*model.PerTreePort{ptp})
		for prt.Step() {
		}
	}
	require.Equal(t, model.RoleAlternate, ptp.Role)
	require.False(t, ptp.Forwarding)
	require.False(t, ptp.Learning)
}

// TestDesignatedFastPathForwardsOnAgreement exercises the RSTP fast path: a
// Designated port that already holds Agreed (from a received Agreement
// flag) reaches Forwarding without waiting out ForwardDelay.
func TestDesignatedFastPathForwardsOnAgreement(t *testing.T) {
	br := model.NewBridge(1, "br0", testMAC(1))
	p := newEnabledPort(10, "eth0", 1)
	br.AddPort(p)
	ptp := cistPTPOf(br, p)
	ptp.Selected = true
	ptp.SelectedRole = model.RoleDesignated
	ptp.Agree = true

	prt := &PortRoleTransitions{Bridge: br, Port: p, Tree: br.CIST(), PTP: ptp}
	require.True(t, prt.Step()) // apply role, enter Discard
	ptp.Agreed = true
	require.True(t, prt.Step()) // Discard -> Learn
	require.True(t, prt.Step()) // Learn -> Forward
	require.True(t, ptp.Forwarding)

	var notified model.ForwardingState
	pst := &PortStateTransition{Port: p, Tree: br.CIST(), PTP: ptp, OnStateChange: func(_ *model.Port, _ model.MSTID, s model.ForwardingState) {
		notified = s
	}}
	require.True(t, pst.Step())
	require.Equal(t, model.FwdForwarding, notified)
	require.False(t, pst.Step()) // no redundant callback once stable
}

// TestTopologyChangeFlushesAndFlags exercises S4's shape: a Designated PTP
// with a pending TC (set by ProcessReceived on a TCN/TC-flagged frame) moves
// to Active, raises newInfo and flushes the FDB exactly once.
func TestTopologyChangeFlushesAndFlags(t *testing.T) {
	br := model.NewBridge(1, "br0", testMAC(1))
	p := newEnabledPort(10, "eth0", 1)
	br.AddPort(p)
	ptp := cistPTPOf(br, p)
	ptp.Role = model.RoleDesignated
	ptp.TCProp = true
	br.CIST().RootTimes = model.Times{MaxAge: br.MaxAge, ForwardDelay: br.ForwardDelay}

	flushes := 0
	tcm := &TopologyChange{Port: p, Tree: br.CIST(), PTP: ptp, OnFlushFDB: func(*model.Port, model.MSTID) { flushes++ }}
	require.True(t, tcm.Step()) // Inactive -> Detected
	require.True(t, tcm.Step()) // Detected -> Active
	require.Equal(t, 1, flushes)
	require.True(t, p.NewInfoCist)
	require.False(t, tcm.Step()) // Active holds while tcWhile > 0 and role still designated-like
	require.Equal(t, model.TCMActive, ptp.TCMState)
}

var _ sm.Machine = (*RoleSelection)(nil)
var _ sm.Machine = (*PortRoleTransitions)(nil)
var _ sm.Machine = (*PortInformation)(nil)
var _ sm.Machine = (*PortStateTransition)(nil)
var _ sm.Machine = (*TopologyChange)(nil)
var _ sm.Machine = (*PortProtocolMigration)(nil)
var _ sm.Machine = (*BridgeDetection)(nil)
var _ sm.Machine = (*PortTransmit)(nil)
