package machines

import (
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/vector"
)

// RoleSelection is PRS, one instance per tree. It fires whenever any
// PTP of the tree has Reselect set: it computes the best root path across
// every PTP whose information is usable, assigns exactly one Root, and marks
// every other PTP Designated, Alternate, Backup or Master.
type RoleSelection struct {
	Bridge *model.Bridge
	Tree   *model.Tree
}

func (m *RoleSelection) Step() bool {
	t := m.Tree
	needsReselect := false
	for _, ptp := range t.Ports {
		if ptp.Reselect {
			needsReselect = true
			break
		}
	}
	if !needsReselect {
		return false
	}
	m.updtRolesTree()
	for _, ptp := range t.Ports {
		ptp.Reselect = false
		ptp.Selected = true
	}
	return true
}

// updtRolesTree implements the role-selection algorithm of IEEE 802.1Q: form a root-path candidate
// vector for every usable PTP (portPriority plus this bridge's path cost on
// that port), take the minimum as the new root vector, elect its owner
// RootPort, then for every other PTP compare the tree's designated-vector
// candidate (path cost zeroed) against the PTP's own received vector to
// decide Designated vs Alternate/Backup.
func (m *RoleSelection) updtRolesTree() {
	t := m.Tree
	isCIST := t.MSTID == model.CIST

	selfVec := vector.Vector{
		IsCIST:             isCIST,
		RootID:             t.BridgeID,
		RegionalRootID:     t.BridgeID,
		DesignatedBridgeID: t.BridgeID,
	}
	best := selfVec
	var rootPTP *model.PerTreePort

	for _, ptp := range t.Ports {
		if !usable(ptp) {
			continue
		}
		cost := pathCost(ptp, isCIST)
		cand := vectorOf(ptp.PortPriority).AddPathCost(cost)
		cand.IsCIST = isCIST
		if vector.Better(cand, best) {
			best = cand
			rootPTP = ptp
		}
	}

	t.RootPriority = rootVectorFrom(best)
	if rootPTP != nil {
		t.RootPortIndex = rootPTP.Index
		t.RootTimes = rootPTP.PortTimes
	} else {
		t.RootPortIndex = -1
		t.RootTimes = model.Times{
			MaxAge:        m.Bridge.MaxAge,
			ForwardDelay:  m.Bridge.ForwardDelay,
			HelloTime:     m.Bridge.HelloTime,
			RemainingHops: m.Bridge.MaxHops,
		}
	}

	cist := m.Bridge.CIST()
	for _, ptp := range t.Ports {
		designatedVec := vector.Vector{
			IsCIST:             isCIST,
			RootID:             t.RootPriority.RootID,
			RegionalRootID:     t.RootPriority.RegionalRootID,
			DesignatedBridgeID: t.BridgeID,
			DesignatedPortID:   ptp.PortID,
		}
		ptp.Designated = rootVectorFrom(designatedVec)
		ptp.DesignatedTimes = t.RootTimes

		switch {
		case rootPTP != nil && ptp.Index == rootPTP.Index:
			ptp.SelectedRole = model.RoleRoot
		case ptp.InfoIs == model.InfoDisabled:
			ptp.SelectedRole = model.RoleDisabled
		case !usable(ptp):
			ptp.SelectedRole = model.RoleDesignated
		case vector.BetterOrSame(designatedVec, vectorOf(ptp.PortPriority)):
			ptp.SelectedRole = model.RoleDesignated
		case ptp.PortPriority.DesignatedBridgeID.Compare(t.BridgeID) == 0:
			ptp.SelectedRole = model.RoleBackup
		default:
			ptp.SelectedRole = model.RoleAlternate
		}

		// Master: MSTI role of the port that carries the CIST off this
		// region (IEEE 802.1Q: "Master role applies only in MSTIs when the CIST
		// RootPort exits the region").
		if !isCIST && ptp.SelectedRole == model.RoleRoot && cist.RootPortIndex == ptp.Index && !cist.IsRoot() {
			ptp.SelectedRole = model.RoleMaster
		}

		if ptp.Port.RestrictedRole && ptp.SelectedRole == model.RoleRoot {
			ptp.SelectedRole = model.RoleAlternate
		}

		// A port we will designate on must carry our designated info; PIM's
		// Update state pushes it and clears the flag.
		if ptp.SelectedRole == model.RoleDesignated &&
			(ptp.InfoIs != model.InfoMine ||
				ptp.PortPriority != ptp.Designated ||
				ptp.PortTimes != ptp.DesignatedTimes) {
			ptp.UpdtInfo = true
		}
	}
}

// usable reports whether a PTP's received information may contribute a
// root-path candidate: only genuinely received (and unexpired) info counts.
func usable(ptp *model.PerTreePort) bool {
	return ptp.InfoIs == model.InfoReceived
}

func pathCost(ptp *model.PerTreePort, isCIST bool) uint32 {
	if !isCIST && ptp.AdminInternalPathCost != 0 {
		return ptp.AdminInternalPathCost
	}
	return ptp.Port.ExternalPathCost()
}

func rootVectorFrom(v vector.Vector) model.RootPriorityVector {
	return model.RootPriorityVector{
		IsCIST:             v.IsCIST,
		RootID:             v.RootID,
		ExternalPathCost:   v.ExternalPathCost,
		RegionalRootID:     v.RegionalRootID,
		InternalPathCost:   v.InternalPathCost,
		DesignatedBridgeID: v.DesignatedBridgeID,
		DesignatedPortID:   v.DesignatedPortID,
	}
}
