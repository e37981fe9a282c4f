// Package machines implements the per-port and per-tree-per-port state
// machines of the protocol: Port Timers, Port Receive, Port
// Protocol Migration, Bridge Detection, Port Transmit, Port Information,
// Port Role Selection, Port Role Transitions, Port State Transition and
// Topology Change.
package machines

import "github.com/mstpgo/mstpd/pkg/model"

// ApplyPortTick runs the Port Timers machine (PTI) for one port: every timer
// named in IEEE 802.1Q is decremented once per tick, across the port itself
// and every PTP it owns. PTI has no enumerated state of its own, so it is not
// part of the fixed-point Driver loop — it runs once, synchronously, at the
// start of every tick, before the other machines converge.
func ApplyPortTick(bridge *model.Bridge, port *model.Port, ptps []*model.PerTreePort) {
	tick16(&port.EdgeDelayWhile)
	tick16(&port.MDelayWhile)
	port.TxCount = 0 // PTX's TxHoldCount token bucket refills once per tick
	if port.HelloWhen == 0 {
		port.HelloWhen = uint16(bridge.HelloTime)
		port.NewInfoCist = true
	} else {
		port.HelloWhen--
	}
	for _, ptp := range ptps {
		tick16(&ptp.FDWhile)
		tick16(&ptp.RRWhile)
		tick16(&ptp.RBWhile)
		tick16(&ptp.TCWhile)
		ageMessageTime(ptp)
	}
}

func tick16(v *uint16) {
	if *v > 0 {
		*v--
	}
}

// ageMessageTime advances the CIST message age held by a PTP once per
// second while the PTP's info is "received" and not already expired; this
// is what eventually drives PIM into the Aged state.
func ageMessageTime(ptp *model.PerTreePort) {
	if ptp.InfoIs != model.InfoReceived {
		return
	}
	isCIST := ptp.Tree.MSTID == model.CIST
	if ptp.PortTimes.Expired(isCIST) {
		ptp.Aged = true
		return
	}
	if isCIST {
		ptp.PortTimes.MessageAge++
	} else {
		ptp.PortTimes = ptp.PortTimes.DecrementedHop()
	}
	if ptp.PortTimes.Expired(isCIST) {
		ptp.Aged = true
	}
}
