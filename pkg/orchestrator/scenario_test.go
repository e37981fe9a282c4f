package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstpgo/mstpd/pkg/bpdu"
	"github.com/mstpgo/mstpd/pkg/model"
)

// encodeTestRST builds an RST BPDU claiming root as both root and
// designated bridge, the shape a neighbour that believes itself root sends.
func encodeTestRST(root model.BridgeIdentifier, portID model.PortIdentifier) []byte {
	var f bpdu.Frame
	f.EncodeConfig(bpdu.ConfigFields{
		Version:  bpdu.VersionRSTP,
		Flags:    bpdu.Flags(0).WithRole(bpdu.PortRoleDesignated),
		Root:     root,
		BridgeID: root,
		PortID:   portID,
		Times:    model.Times{MaxAge: 20, ForwardDelay: 15, HelloTime: 2},
	})
	return append([]byte(nil), f.Bytes()...)
}

// pendingFrame is one queued BPDU in flight between two test bridges.
type pendingFrame struct {
	dst    *Orchestrator
	brIf   int
	portIf int
	frame  []byte
}

// link wires two Orchestrators' ports together. Frames are queued from the
// TxBPDU callback (which runs under the sender's lock) and delivered by
// pump, outside any lock — the same store-and-forward the real event loop
// does through the kernel send buffer.
type link struct {
	queue []pendingFrame
}

func (l *link) connect(a *Orchestrator, aBr, aPort int, b *Orchestrator, bBr, bPort int) (txA, txB func(int, []byte)) {
	txA = func(ifindex int, frame []byte) {
		if ifindex == aPort {
			cp := append([]byte(nil), frame...)
			l.queue = append(l.queue, pendingFrame{dst: b, brIf: bBr, portIf: bPort, frame: cp})
		}
	}
	txB = func(ifindex int, frame []byte) {
		if ifindex == bPort {
			cp := append([]byte(nil), frame...)
			l.queue = append(l.queue, pendingFrame{dst: a, brIf: aBr, portIf: aPort, frame: cp})
		}
	}
	return txA, txB
}

func (l *link) pump(t *testing.T) {
	t.Helper()
	for i := 0; i < 1000 && len(l.queue) > 0; i++ {
		f := l.queue[0]
		l.queue = l.queue[1:]
		require.NoError(t, f.dst.BPDUReceived(f.brIf, f.portIf, f.frame))
	}
	require.Empty(t, l.queue, "frame exchange did not settle")
}

func enabledPort(ifindex int, number uint16) *model.Port {
	return &model.Port{
		Ident:       model.PortIdentifier{Priority: 128, Number: number},
		IfName:      "eth0",
		IfIndex:     ifindex,
		MAC:         mac(byte(ifindex)),
		Speed:       1000,
		Duplex:      model.DuplexFull,
		PortEnabled: true,
	}
}

// TestTwoBridgeConvergence is S1: bridge A at priority 0, bridge B at the
// default 32768, one link. Within 2*HelloTime + MigrateTime seconds A roots
// the CIST, B's link port is its Root port, and B's other port is
// Designated.
func TestTwoBridgeConvergence(t *testing.T) {
	var wire link
	var a, b *Orchestrator
	var txA, txB func(int, []byte)

	a = New(Callbacks{TxBPDU: func(ifindex int, frame []byte) { txA(ifindex, frame) }})
	b = New(Callbacks{TxBPDU: func(ifindex int, frame []byte) { txB(ifindex, frame) }})
	txA, txB = wire.connect(a, 1, 10, b, 2, 20)

	a.BridgeAdded(1, "brA", mac(0xA0))
	b.BridgeAdded(2, "brB", mac(0xB0))
	require.NoError(t, a.SetBridgeConfig(1, model.BridgeConfig{Priority: 0, PrioritySet: true}))

	require.NoError(t, a.PortAdded(1, enabledPort(10, 1)))
	require.NoError(t, b.PortAdded(2, enabledPort(20, 1)))
	require.NoError(t, b.PortAdded(2, enabledPort(21, 2))) // B's stub second port, no neighbour

	// 2*HelloTime + MigrateTime = 7 seconds of protocol time.
	for i := 0; i < 7; i++ {
		a.Tick()
		b.Tick()
		wire.pump(t)
	}

	a.mu.Lock()
	brA := a.bridges[1]
	aRoot := brA.CIST().RootPriority.RootID
	aRole := brA.CIST().Ports[brA.Port(10).Index].Role
	a.mu.Unlock()

	b.mu.Lock()
	brB := b.bridges[2]
	bRoot := brB.CIST().RootPriority.RootID
	bLinkRole := brB.CIST().Ports[brB.Port(20).Index].Role
	bOtherRole := brB.CIST().Ports[brB.Port(21).Index].Role
	b.mu.Unlock()

	assert.Equal(t, brA.CIST().BridgeID, aRoot, "A roots itself")
	assert.Equal(t, model.RoleDesignated, aRole)
	assert.Equal(t, brA.CIST().BridgeID, bRoot, "B adopts A as root")
	assert.Equal(t, model.RoleRoot, bLinkRole)
	assert.Equal(t, model.RoleDesignated, bOtherRole)
}

// TestAdminEdgeFastForward is S5: adminEdge=yes, autoEdge=no transitions to
// Forwarding without waiting out ForwardDelay, and any received BPDU
// reverts the port to non-edge within one pass.
func TestAdminEdgeFastForward(t *testing.T) {
	var states []model.ForwardingState
	o := New(Callbacks{
		SetPortState: func(_ int, mstid model.MSTID, s model.ForwardingState) {
			if mstid == model.CIST {
				states = append(states, s)
			}
		},
	})
	o.BridgeAdded(1, "br0", mac(1))
	p := enabledPort(10, 1)
	p.AdminEdge = true
	require.NoError(t, o.PortAdded(1, p))

	o.mu.Lock()
	br := o.bridges[1]
	ptp := br.CIST().Ports[br.Port(10).Index]
	forwarding := ptp.Forwarding
	operEdge := br.Port(10).OperEdge
	o.mu.Unlock()

	require.True(t, operEdge)
	require.True(t, forwarding, "edge port forwards without ForwardDelay")
	require.Contains(t, states, model.FwdForwarding)

	// Any BPDU un-edges the port.
	remote := model.NewBridgeIdentifier(0, macHW(9))
	frame := encodeTestRST(remote, model.PortIdentifier{Priority: 128, Number: 3})
	require.NoError(t, o.BPDUReceived(1, 10, frame))

	o.mu.Lock()
	operEdge = o.bridges[1].Port(10).OperEdge
	o.mu.Unlock()
	assert.False(t, operEdge, "received BPDU reverts edge status")
}

// TestBPDUGuard is S6: a bpdu-guard port that hears any BPDU is shut via
// set_port_state Disabled and stays down until reconfigured.
func TestBPDUGuard(t *testing.T) {
	var lastState model.ForwardingState
	o := New(Callbacks{
		SetPortState: func(_ int, _ model.MSTID, s model.ForwardingState) { lastState = s },
	})
	o.BridgeAdded(1, "br0", mac(1))
	p := enabledPort(10, 1)
	p.BPDUGuard = true
	require.NoError(t, o.PortAdded(1, p))

	remote := model.NewBridgeIdentifier(0, macHW(9))
	require.NoError(t, o.BPDUReceived(1, 10, encodeTestRST(remote, model.PortIdentifier{Priority: 128, Number: 3})))

	assert.Equal(t, model.FwdDisabled, lastState)
	o.mu.Lock()
	shut := o.bridges[1].Port(10).AdministrativelyShutByGuard
	enabled := o.bridges[1].Port(10).PortEnabled
	o.mu.Unlock()
	assert.True(t, shut)
	assert.False(t, enabled)

	// Stays shut across ticks.
	for i := 0; i < 5; i++ {
		o.Tick()
	}
	o.mu.Lock()
	shut = o.bridges[1].Port(10).AdministrativelyShutByGuard
	o.mu.Unlock()
	assert.True(t, shut)

	// Reconfiguring the guard off re-arms the port.
	require.NoError(t, o.SetPortConfig(1, 10, model.PortConfig{BPDUGuard: false, BPDUGuardSet: true}))
	o.mu.Lock()
	shut = o.bridges[1].Port(10).AdministrativelyShutByGuard
	o.mu.Unlock()
	assert.False(t, shut)
}

// TestBPDUFilterIgnoresFrames: a bpdu-filter port neither processes nor is
// shut by inbound BPDUs.
func TestBPDUFilterIgnoresFrames(t *testing.T) {
	o := New(Callbacks{})
	o.BridgeAdded(1, "br0", mac(1))
	p := enabledPort(10, 1)
	p.BPDUFilter = true
	require.NoError(t, o.PortAdded(1, p))

	remote := model.NewBridgeIdentifier(0, macHW(9))
	require.NoError(t, o.BPDUReceived(1, 10, encodeTestRST(remote, model.PortIdentifier{Priority: 128, Number: 3})))

	o.mu.Lock()
	rootID := o.bridges[1].CIST().RootPriority.RootID
	own := o.bridges[1].CIST().BridgeID
	o.mu.Unlock()
	assert.Equal(t, own, rootID, "filtered frame must not move the root")
}

// TestConfigClampAndQuantize covers configuration ingress and its permissive
// behaviors: numeric clamping, priority rounding, enum rejection.
func TestConfigClampAndQuantize(t *testing.T) {
	o := New(Callbacks{})
	o.BridgeAdded(1, "br0", mac(1))

	// hello above the standard's 2s is allowed up to 255 (permissive clamp)
	require.NoError(t, o.SetBridgeConfig(1, model.BridgeConfig{HelloTime: 100, HelloTimeSet: true}))
	// priority quantized to a 4096 multiple
	require.NoError(t, o.SetBridgeConfig(1, model.BridgeConfig{Priority: 5000, PrioritySet: true}))

	o.mu.Lock()
	br := o.bridges[1]
	hello := br.HelloTime
	prio := br.CIST().BridgeID.Priority16()
	o.mu.Unlock()
	assert.Equal(t, uint8(100), hello)
	assert.Equal(t, uint16(4096), prio)

	// bad enum is rejected, not clamped
	err := o.SetBridgeConfig(1, model.BridgeConfig{Mode: model.ProtocolVersion(9), ModeSet: true})
	require.ErrorIs(t, err, model.ErrInvalidEnum)

	// unknown bridge
	require.ErrorIs(t, o.SetBridgeConfig(99, model.BridgeConfig{}), model.ErrUnknownBridge)
}

// TestVIDTableSwapRecomputesDigest covers I5 and the atomic whole-table
// swap semantics of set_vid_to_mstid.
func TestVIDTableSwapRecomputesDigest(t *testing.T) {
	o := New(Callbacks{})
	o.BridgeAdded(1, "br0", mac(1))
	require.NoError(t, o.CreateMSTI(1, 7))

	var table model.VIDToMSTIDTable
	for v := model.VID(100); v <= 199; v++ {
		table.Set(v, 7)
	}
	require.NoError(t, o.SetVIDToMSTID(1, table))

	o.mu.Lock()
	br := o.bridges[1]
	digest := br.Digest
	want := br.VIDToMSTID.Digest()
	o.mu.Unlock()
	assert.Equal(t, want, digest)

	// deleting the MSTI remaps its VIDs to the CIST and refreshes the digest
	require.NoError(t, o.DeleteMSTI(1, 7))
	o.mu.Lock()
	br = o.bridges[1]
	assert.Equal(t, model.CIST, br.VIDToMSTID[150])
	assert.Equal(t, br.VIDToMSTID.Digest(), br.Digest)
	o.mu.Unlock()

	require.ErrorIs(t, o.DeleteMSTI(1, 0), model.ErrCISTCannotBeDeleted)
}

// TestMcheckRestartsMigration: the control socket's mcheck re-probes a
// neighbour that had forced the port down to legacy STP encoding.
func TestMcheckRestartsMigration(t *testing.T) {
	o := New(Callbacks{})
	o.BridgeAdded(1, "br0", mac(1))
	require.NoError(t, o.PortAdded(1, enabledPort(10, 1)))

	o.mu.Lock()
	p := o.bridges[1].Port(10)
	p.SendRSTP = false
	p.MDelayWhile = 0
	o.mu.Unlock()

	require.NoError(t, o.Mcheck(1, 10))

	o.mu.Lock()
	sendRSTP := o.bridges[1].Port(10).SendRSTP
	mdelay := o.bridges[1].Port(10).MDelayWhile
	o.mu.Unlock()
	assert.True(t, sendRSTP)
	assert.Equal(t, uint16(3), mdelay)
}
