package machines

import "github.com/mstpgo/mstpd/pkg/model"

// PortRoleTransitions is PRT, one instance per PTP. It applies the
// role PRS selected, then runs the Discard->Learn->Forward handshake for
// Root/Designated/Master ports (gated by rrWhile/fdWhile or, on the RSTP
// fast path, by the agreed/synced flags exchanged with the neighbour) and
// holds Alternate/Backup/Disabled ports at Discarding.
type PortRoleTransitions struct {
	Bridge *model.Bridge
	Port   *model.Port
	Tree   *model.Tree
	PTP    *model.PerTreePort
}

func (m *PortRoleTransitions) Step() bool {
	ptp := m.PTP
	if ptp.Selected && !ptp.UpdtInfo && ptp.Role != ptp.SelectedRole {
		ptp.Role = ptp.SelectedRole
		m.enterRole()
		return true
	}
	switch ptp.Role {
	case model.RoleDisabled:
		return m.stepDisabled()
	case model.RoleRoot, model.RoleMaster:
		return m.stepForwardingEligible(true)
	case model.RoleDesignated:
		return m.stepForwardingEligible(false)
	case model.RoleAlternate, model.RoleBackup:
		return m.stepBlocking()
	default:
		return false
	}
}

func (m *PortRoleTransitions) enterRole() {
	ptp := m.PTP
	ptp.PRTState = model.PRTDiscard
	ptp.Learning = false
	ptp.Forwarding = false
	switch ptp.Role {
	case model.RoleDisabled:
		ptp.Synced = true
		ptp.Sync = false
		ptp.ReRoot = false
		ptp.FDWhile = 0
	case model.RoleRoot, model.RoleMaster:
		ptp.RRWhile = uint16(m.Bridge.ForwardDelay)
		ptp.FDWhile = uint16(m.Bridge.ForwardDelay)
		ptp.Proposing = false
	case model.RoleDesignated:
		ptp.Synced = false
		ptp.Agreed = ptp.Agreed && ptp.Agree
		if m.Port.OperEdge {
			ptp.FDWhile = 0
		} else {
			ptp.FDWhile = uint16(m.Bridge.ForwardDelay)
		}
		ptp.Proposing = !ptp.Agreed
	case model.RoleAlternate, model.RoleBackup:
		ptp.RBWhile = 2 * uint16(m.Bridge.HelloTime)
		ptp.Synced = true
	}
}

func (m *PortRoleTransitions) stepDisabled() bool {
	ptp := m.PTP
	if ptp.PRTState != model.PRTDiscard || ptp.Learning || ptp.Forwarding {
		ptp.PRTState = model.PRTDiscard
		ptp.Learning = false
		ptp.Forwarding = false
		return true
	}
	return false
}

func (m *PortRoleTransitions) stepBlocking() bool {
	ptp := m.PTP
	if ptp.Learning || ptp.Forwarding {
		ptp.Learning = false
		ptp.Forwarding = false
		return true
	}
	if ptp.RBWhile == 0 {
		ptp.RBWhile = 2 * uint16(m.Bridge.HelloTime)
	}
	return false
}

// stepForwardingEligible advances the Discard->Learn->Forward handshake for
// Root/Master (isRoot==true) and Designated ports. The RSTP fast path
// (Agreed already true, set from a received Agreement flag or propagated
// from a downstream agreement) skips straight through; otherwise the port
// waits out fdWhile twice (once per IEEE 802.1Q 13.34 "twice around" rule,
// modelled here as Discard needing fdWhile==0 once and Learn needing it
// once more after being reloaded).
func (m *PortRoleTransitions) stepForwardingEligible(isRoot bool) bool {
	ptp := m.PTP
	// An edge port skips the delay entirely; it cannot form a loop.
	edge := !isRoot && m.Port.OperEdge
	ready := ptp.Agreed || edge || ptp.FDWhile == 0
	switch ptp.PRTState {
	case model.PRTDiscard:
		if !ready {
			return false
		}
		ptp.PRTState = model.PRTLearn
		ptp.Learning = true
		ptp.FDWhile = uint16(m.Bridge.ForwardDelay)
		return true
	case model.PRTLearn:
		if !(ptp.Agreed || edge || ptp.FDWhile == 0) {
			return false
		}
		ptp.PRTState = model.PRTForward
		ptp.Forwarding = true
		if !isRoot {
			ptp.Agreed = true
		}
		return true
	case model.PRTForward:
		return false
	default:
		ptp.PRTState = model.PRTDiscard
		return true
	}
}
