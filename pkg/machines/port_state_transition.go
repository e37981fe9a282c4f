package machines

import "github.com/mstpgo/mstpd/pkg/model"

// PortStateTransition is PST per IEEE 802.1Q: it derives the kernel-visible forwarding
// state from the Learning/Forwarding booleans PRT computed and, only on an
// actual change, calls OnStateChange so the Orchestrator can push
// set_port_state to the adaptation layer.
type PortStateTransition struct {
	Port *model.Port
	Tree *model.Tree
	PTP  *model.PerTreePort

	OnStateChange func(port *model.Port, mstid model.MSTID, state model.ForwardingState)
}

func (m *PortStateTransition) Step() bool {
	ptp := m.PTP
	state := forwardingStateOf(ptp)
	if ptp.LastForwardingStateSet && ptp.LastForwardingState == state {
		return false
	}
	ptp.LastForwardingState = state
	ptp.LastForwardingStateSet = true
	if m.OnStateChange != nil {
		m.OnStateChange(m.Port, m.Tree.MSTID, state)
	}
	return true
}

func forwardingStateOf(ptp *model.PerTreePort) model.ForwardingState {
	switch {
	case ptp.Role == model.RoleDisabled:
		return model.FwdDisabled
	case ptp.Forwarding:
		return model.FwdForwarding
	case ptp.Learning:
		return model.FwdLearning
	default:
		return model.FwdBlocking
	}
}
