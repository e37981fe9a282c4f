package machines

import "github.com/mstpgo/mstpd/pkg/model"

// TopologyChange is TCM per IEEE 802.1Q: Inactive/Learning/Detected/NotifiedTcn/
// NotifiedTc/Propagating/Acknowledged/Active. It turns a detected topology
// change (TC bit on a received BPDU, or a local TCN on legacy STP) into
// newInfo with the TC flags set, an FDB flush on this port's tree/VID set,
// and — for legacy STP, which has no TC propagation via flags — an upstream
// TCN flood.
type TopologyChange struct {
	Port *model.Port
	Tree *model.Tree
	PTP  *model.PerTreePort

	OnFlushFDB func(port *model.Port, mstid model.MSTID)
	OnSendTCN  func(port *model.Port)
}

func (m *TopologyChange) Step() bool {
	switch m.PTP.TCMState {
	case model.TCMInactive:
		return m.stepInactive()
	case model.TCMLearning:
		return m.stepLearning()
	case model.TCMDetected:
		return m.stepDetected()
	case model.TCMNotifiedTCN:
		return m.stepNotifiedTCN()
	case model.TCMNotifiedTC:
		return m.stepNotifiedTC()
	case model.TCMPropagating:
		return m.stepPropagating()
	case model.TCMAcknowledged:
		return m.stepAcknowledged()
	case model.TCMActive:
		return m.stepActive()
	default:
		return false
	}
}

func designatedLike(role model.Role) bool {
	return role == model.RoleDesignated || role == model.RoleRoot || role == model.RoleMaster
}

func (m *TopologyChange) stepInactive() bool {
	ptp := m.PTP
	if !m.Port.PortEnabled {
		return false
	}
	if (ptp.TCProp || m.Port.RcvdSTP) && designatedLike(ptp.Role) {
		ptp.TCMState = model.TCMDetected
		return true
	}
	if m.Port.RcvdSTP && !designatedLike(ptp.Role) {
		ptp.TCMState = model.TCMNotifiedTCN
		return true
	}
	return false
}

func (m *TopologyChange) stepDetected() bool {
	ptp := m.PTP
	ptp.TCWhile = uint16(m.Tree.RootTimes.MaxAge) + uint16(m.Tree.RootTimes.ForwardDelay)
	ptp.NewInfo = true
	if m.Tree.MSTID == model.CIST {
		m.Port.NewInfoCist = true
	} else {
		m.Port.NewInfoMsti = true
	}
	if m.OnFlushFDB != nil {
		m.OnFlushFDB(m.Port, m.Tree.MSTID)
	}
	m.Tree.TopologyChangeCount++
	ptp.TCProp = false
	ptp.TCMState = model.TCMActive
	return true
}

func (m *TopologyChange) stepActive() bool {
	ptp := m.PTP
	switch {
	case ptp.TCAck:
		ptp.TCAck = false
		ptp.TCMState = model.TCMAcknowledged
		return true
	case !designatedLike(ptp.Role):
		ptp.TCMState = model.TCMLearning
		return true
	case ptp.TCWhile == 0:
		ptp.TCMState = model.TCMInactive
		return true
	default:
		return false
	}
}

func (m *TopologyChange) stepAcknowledged() bool {
	ptp := m.PTP
	ptp.TCWhile = 0
	ptp.TCMState = model.TCMInactive
	return true
}

func (m *TopologyChange) stepLearning() bool {
	m.PTP.TCMState = model.TCMInactive
	return true
}

func (m *TopologyChange) stepNotifiedTCN() bool {
	if m.OnSendTCN != nil {
		m.OnSendTCN(m.Port)
	}
	m.PTP.TCMState = model.TCMNotifiedTC
	return true
}

func (m *TopologyChange) stepNotifiedTC() bool {
	m.PTP.TCProp = true
	m.PTP.TCMState = model.TCMPropagating
	return true
}

func (m *TopologyChange) stepPropagating() bool {
	ptp := m.PTP
	ptp.TCWhile = uint16(m.Tree.RootTimes.MaxAge) + uint16(m.Tree.RootTimes.ForwardDelay)
	ptp.TCMState = model.TCMActive
	return true
}
