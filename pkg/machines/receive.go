package machines

import (
	"github.com/mstpgo/mstpd/pkg/bpdu"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/vector"
)

// ProcessReceived runs the Port Receive machine (PRX) for one inbound frame:
// it classifies the frame, ages the CIST message time, and fans the decoded
// vectors out into rcvdMsg on the CIST PTP and every MSTI PTP the frame
// describes. It has no enumerated state and runs once per
// received frame, ahead of the fixed-point PIM pass that actually consumes
// rcvdMsg.
//
// ptpsByMSTID must contain every tree's PTP for this port, keyed by MSTID.
func ProcessReceived(port *model.Port, ptpsByMSTID map[model.MSTID]*model.PerTreePort, frame *bpdu.ReceivedBPDU) {
	port.RcvdSTP = frame.Version == bpdu.VersionSTP
	port.RcvdRSTP = frame.Version == bpdu.VersionRSTP || frame.Version == bpdu.VersionMSTP
	// Any BPDU restarts edgeDelayWhile; BDM treats a running timer as "a
	// bridge is attached" and holds the port non-edge until it expires.
	port.EdgeDelayWhile = 3

	cistPTP := ptpsByMSTID[model.CIST]
	if cistPTP == nil {
		return
	}

	if frame.Kind == bpdu.KindTCN {
		cistPTP.TCProp = true
		return
	}

	msgTimes := frame.CISTTimes.AgedForReception()
	cistPTP.MsgPriority = model.RootPriorityVector{
		IsCIST:             true,
		RootID:             frame.CISTRoot,
		ExternalPathCost:   frame.CISTExternalPathCost,
		RegionalRootID:     frame.CISTRegionalRootOrLegacyBridgeID,
		InternalPathCost:   frame.CISTInternalRootPathCost,
		DesignatedBridgeID: frame.CISTRegionalRootOrLegacyBridgeID,
		DesignatedPortID:   frame.CISTPortID,
	}
	if frame.Kind == bpdu.KindMST {
		// An MST frame carries the regional root at octets 17..24 and the
		// designated (sending) bridge at 94..101; legacy frames fold both
		// into the single bridge-identifier field.
		cistPTP.MsgPriority.DesignatedBridgeID = frame.CISTBridgeID
	}
	cistPTP.MsgTimes = msgTimes
	cistPTP.RcvdMsg = true
	cistPTP.TCProp = cistPTP.TCProp || frame.TC()
	cistPTP.TCAck = frame.TCAck()
	if frame.Proposal() {
		cistPTP.Proposed = true
	}
	if frame.Agreement() {
		cistPTP.Agree = true
	}

	if frame.Kind != bpdu.KindMST {
		return
	}
	for _, rec := range frame.MSTI {
		ptp, ok := ptpsByMSTID[rec.MSTIDOf()]
		if !ok {
			continue // MSTID unknown to this bridge (e.g. config digest mismatch upstream): ignore the record
		}
		ptp.MsgPriority = model.RootPriorityVector{
			RegionalRootID:     rec.RegionalRootID,
			InternalPathCost:   rec.InternalPathCost,
			DesignatedBridgeID: rec.RegionalRootID,
			DesignatedPortID:   frame.CISTPortID,
		}
		ptp.MsgTimes = model.Times{RemainingHops: rec.RemainingHops}
		ptp.RcvdMsg = true
	}
}

// vectorOf converts a model.RootPriorityVector into the comparable
// pkg/vector.Vector form used by role selection and PIM.
func vectorOf(v model.RootPriorityVector) vector.Vector {
	return vector.Vector{
		IsCIST:             v.IsCIST,
		RootID:             v.RootID,
		ExternalPathCost:   v.ExternalPathCost,
		RegionalRootID:     v.RegionalRootID,
		InternalPathCost:   v.InternalPathCost,
		DesignatedBridgeID: v.DesignatedBridgeID,
		DesignatedPortID:   v.DesignatedPortID,
	}
}
