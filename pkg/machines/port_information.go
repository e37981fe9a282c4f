package machines

import (
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/vector"
)

// PortInformation is PIM, one instance per (Port, Tree): Disabled, Aged,
// Update, Current, Receive, SuperiorDesignated, RepeatedDesignated,
// InferiorDesignated, per IEEE 802.1Q 13.29. It folds rcvdMsg and the aging timer into
// portPriority/portTimes and drives the updtInfo/newInfo/reselect flags that
// release PRS and PRT.
type PortInformation struct {
	Port *model.Port
	Tree *model.Tree
	PTP  *model.PerTreePort
}

func (m *PortInformation) Step() bool {
	switch m.PTP.PIMState {
	case model.PIMDisabled:
		return m.stepDisabled()
	case model.PIMAged:
		return m.stepAged()
	case model.PIMUpdate:
		return m.stepUpdate()
	case model.PIMCurrent:
		return m.stepCurrent()
	case model.PIMReceive:
		return m.stepReceive()
	case model.PIMSuperiorDesignated:
		return m.stepSuperiorDesignated()
	case model.PIMRepeatedDesignated:
		return m.stepRepeatedDesignated()
	case model.PIMInferiorDesignated:
		return m.stepInferiorDesignated()
	default:
		return false
	}
}

func (m *PortInformation) enterDisabled() {
	ptp := m.PTP
	ptp.RcvdMsg = false
	ptp.Proposing = false
	ptp.Proposed = false
	ptp.Agree = false
	ptp.Agreed = false
	ptp.Synced = true
	ptp.PortPriority = ptp.Designated
	ptp.PortTimes = model.Times{}
	ptp.UpdtInfo = false
	ptp.InfoIs = model.InfoDisabled
	ptp.Selected = false
	ptp.Reselect = true
	ptp.Aged = false
	ptp.PIMState = model.PIMDisabled
}

func (m *PortInformation) stepDisabled() bool {
	ptp := m.PTP
	if m.Port.PortEnabled {
		ptp.InfoIs = model.InfoAged
		ptp.PIMState = model.PIMAged
		ptp.Reselect = true
		ptp.Selected = false
		return true
	}
	if ptp.RcvdMsg {
		ptp.RcvdMsg = false
		return true
	}
	return false
}

func (m *PortInformation) stepAged() bool {
	if !m.Port.PortEnabled {
		m.enterDisabled()
		return true
	}
	ptp := m.PTP
	if ptp.Selected && ptp.UpdtInfo {
		m.enterUpdate()
		return true
	}
	return false
}

func (m *PortInformation) enterUpdate() {
	ptp := m.PTP
	ptp.PortPriority = ptp.Designated
	ptp.PortTimes = ptp.DesignatedTimes
	ptp.UpdtInfo = false
	ptp.Agree = ptp.Agree && sameOrBetter(ptp.MsgPriority, ptp.Designated, ptp.Tree.MSTID == model.CIST)
	ptp.Synced = ptp.Synced && ptp.Agree
	ptp.InfoIs = model.InfoMine
	ptp.NewInfo = true
	if ptp.Tree.MSTID == model.CIST {
		m.Port.NewInfoCist = true
	} else {
		m.Port.NewInfoMsti = true
	}
	ptp.PIMState = model.PIMUpdate
}

func (m *PortInformation) stepUpdate() bool {
	m.enterCurrent()
	return true
}

func (m *PortInformation) enterCurrent() { m.PTP.PIMState = model.PIMCurrent }

func (m *PortInformation) stepCurrent() bool {
	ptp := m.PTP
	if !m.Port.PortEnabled {
		m.enterDisabled()
		return true
	}
	if ptp.Selected && ptp.UpdtInfo {
		m.enterUpdate()
		return true
	}
	if ptp.InfoIs == model.InfoReceived && ptp.Aged {
		ptp.InfoIs = model.InfoAged
		ptp.PIMState = model.PIMAged
		ptp.Reselect = true
		ptp.Selected = false
		return true
	}
	if ptp.RcvdMsg {
		ptp.PIMState = model.PIMReceive
		return true
	}
	return false
}

func (m *PortInformation) stepReceive() bool {
	ptp := m.PTP
	isCIST := ptp.Tree.MSTID == model.CIST
	cmp := vector.Compare(vectorOf(ptp.MsgPriority), vectorOf(ptp.PortPriority))
	fromMe := ptp.MsgPriority.DesignatedBridgeID.Compare(ptp.Tree.BridgeID) == 0
	switch {
	case cmp == vector.Superior:
		ptp.PIMState = model.PIMSuperiorDesignated
	case cmp == vector.Same && fromMe:
		ptp.PIMState = model.PIMRepeatedDesignated
	case cmp == vector.Same:
		ptp.PIMState = model.PIMRepeatedDesignated
	default:
		ptp.PIMState = model.PIMInferiorDesignated
	}
	_ = isCIST
	return true
}

func (m *PortInformation) stepSuperiorDesignated() bool {
	ptp := m.PTP
	ptp.Agreed = false
	ptp.Proposing = false
	ptp.PortPriority = ptp.MsgPriority
	ptp.PortTimes = ptp.MsgTimes
	ptp.UpdtInfo = false
	ptp.InfoIs = model.InfoReceived
	ptp.RcvdMsg = false
	ptp.Synced = ptp.Synced && ptp.Agree
	ptp.Reselect = true
	ptp.Selected = false
	m.enterCurrent()
	return true
}

func (m *PortInformation) stepRepeatedDesignated() bool {
	ptp := m.PTP
	ptp.RcvdMsg = false
	ptp.PortTimes = ptp.MsgTimes
	m.enterCurrent()
	return true
}

func (m *PortInformation) stepInferiorDesignated() bool {
	ptp := m.PTP
	if ptp.Role == model.RoleDesignated {
		ptp.RcvdMsg = false
		m.enterCurrent()
		return true
	}
	// an inferior message from a port that is not (yet) designated still
	// updates portPriority so PRS sees the neighbour's claim.
	ptp.PortPriority = ptp.MsgPriority
	ptp.PortTimes = ptp.MsgTimes
	ptp.RcvdMsg = false
	ptp.Reselect = true
	ptp.Selected = false
	m.enterCurrent()
	return true
}

// sameOrBetter reports whether msg is at least as good as designated, used
// by Update to decide whether the agree handshake bit survives re-rooting.
func sameOrBetter(msg, designated model.RootPriorityVector, isCIST bool) bool {
	mv := vectorOf(msg)
	dv := vectorOf(designated)
	mv.IsCIST, dv.IsCIST = isCIST, isCIST
	return vector.BetterOrSame(mv, dv)
}
