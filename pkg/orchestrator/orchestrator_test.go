package orchestrator

import (
	"net"
	"testing"

	"github.com/mstpgo/mstpd/pkg/bpdu"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/stretchr/testify/require"
)

func mac(b byte) [6]byte { return [6]byte{0, 0, 0, 0, 0, b} }

func macHW(b byte) net.HardwareAddr {
	m := mac(b)
	return m[:]
}

// TestBPDUReceivedElectsRemoteRoot exercises the S1 shape: a single bridge
// with one enabled port hears a BPDU from a strictly better root and, after
// the BPDUReceived-triggered fixed point, holds that port as Root.
func TestBPDUReceivedElectsRemoteRoot(t *testing.T) {
	var txCount int
	o := New(Callbacks{
		TxBPDU: func(ifindex int, frame []byte) { txCount++ },
	})

	o.BridgeAdded(1, "br0", mac(2)) // our own bridge id priority defaults to 32768
	require.NoError(t, o.PortAdded(1, &model.Port{
		Ident:       model.PortIdentifier{Priority: 128, Number: 1},
		IfName:      "eth0",
		IfIndex:     10,
		MAC:         mac(10),
		Speed:       1000,
		PortEnabled: true,
		AutoEdge:    true,
	}))

	remoteRoot := model.NewBridgeIdentifier(0, macHW(1)) // priority 0, beats our default 32768

	var f bpdu.Frame
	f.EncodeConfig(bpdu.ConfigFields{
		Version:  bpdu.VersionRSTP,
		Flags:    bpdu.Flags(0).WithRole(bpdu.PortRoleDesignated),
		Root:     remoteRoot,
		BridgeID: remoteRoot,
		PortID:   model.PortIdentifier{Priority: 128, Number: 1},
		Times:    model.Times{MaxAge: 20, ForwardDelay: 15, HelloTime: 2},
	})

	require.NoError(t, o.BPDUReceived(1, 10, f.Bytes()))

	o.mu.Lock()
	br := o.bridges[1]
	ptp := br.CIST().Ports[br.Port(10).Index]
	role := ptp.Role
	rootID := br.CIST().RootPriority.RootID
	o.mu.Unlock()

	require.Equal(t, model.RoleRoot, role)
	require.Equal(t, remoteRoot, rootID)
}

// TestBridgeRemovedForgetsTopology ensures a removed bridge's state is gone
// and re-adding it starts clean.
func TestBridgeRemovedForgetsTopology(t *testing.T) {
	o := New(Callbacks{})
	o.BridgeAdded(5, "br1", mac(3))
	o.BridgeRemoved(5)
	require.Error(t, o.PortAdded(5, &model.Port{IfIndex: 1}))
}

// TestTickAdvancesWithoutPanicOnEmptyRegistry guards the edge case of a tick
// arriving before any bridge exists.
func TestTickAdvancesWithoutPanicOnEmptyRegistry(t *testing.T) {
	o := New(Callbacks{})
	require.NotPanics(t, func() { o.Tick() })
}
