package bridge

import "github.com/mstpgo/mstpd/pkg/model"

// Manager is the kernel control surface the daemon drives: RTNETLINK
// link/bridge events in, per-port (or per-VLAN MST) forwarding state and FDB
// flushes out. The core never sees this interface — the daemon translates
// between it and the Orchestrator's callbacks.
type Manager interface {
	// Bridges lists the kernel bridges currently present.
	Bridges() ([]BridgeInfo, error)

	// Ports lists the ports enslaved to the given bridge.
	Ports(bridgeIfindex int) ([]PortInfo, error)

	// Watch subscribes to link events, delivering classified Events on
	// events until done is closed.
	Watch(events chan<- Event, done <-chan struct{}) error

	// SetPortState pushes a per-port STP state to the kernel.
	SetPortState(portName string, state model.ForwardingState) error

	// SetMSTPortState pushes a per-VLAN MST state for one MSTI on one port.
	// Returns ErrMSTNotSupported when the kernel lacks BR_BOOLOPT_MST_ENABLE;
	// the caller then folds MSTIs into the per-port state.
	SetMSTPortState(portIfindex int, mstid uint16, state model.ForwardingState) error

	// EnableMST turns on the bridge's per-VLAN MST mode
	// (BR_BOOLOPT_MST_ENABLE).
	EnableMST(bridgeIfindex int) error

	// FlushFDB clears the learned MAC entries behind one port.
	FlushFDB(portName string) error

	// SpeedDuplex queries a port's operational speed (Mb/s) and duplex.
	SpeedDuplex(portName string) (speed uint32, duplex model.Duplex, err error)

	// SetAgeingTime applies the bridge-wide FDB ageing time in seconds.
	SetAgeingTime(bridgeName string, seconds uint32) error
}

// NewManager creates the platform-specific manager.
func NewManager() (Manager, error) {
	return newPlatformManager()
}
