// Package orchestrator implements the applicative interface through which
// an OS adaptation layer feeds events and reads decisions. It is the
// single owner of every Bridge: events arrive one at a time on the
// event-loop thread, each call runs its affected bridge's state machines to
// a fixed point before returning, and no call here blocks, sleeps or awaits
// I/O.
package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mstpgo/mstpd/pkg/bpdu"
	"github.com/mstpgo/mstpd/pkg/machines"
	"github.com/mstpgo/mstpd/pkg/mlog"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/sm"
)

// Callbacks is the set of functions the adaptation layer supplies; the
// Orchestrator never calls out to the kernel directly.
type Callbacks struct {
	TxBPDU       func(ifindex int, frame []byte)
	SetPortState func(ifindex int, mstid model.MSTID, state model.ForwardingState)
	FlushFDB     func(ifindex int, mstid model.MSTID)
}

// Orchestrator owns every managed Bridge, keyed by kernel ifindex, the same
// arena-index pattern the entities use, applied at the registry level.
type Orchestrator struct {
	mu      sync.Mutex
	bridges map[int]*model.Bridge
	cb      Callbacks

	events atomic.Uint64 // monotonically increasing, for status/debug snapshots
}

// New creates an empty registry bound to cb. cb's fields may be nil in
// tests; a nil callback is simply not invoked.
func New(cb Callbacks) *Orchestrator {
	return &Orchestrator{bridges: make(map[int]*model.Bridge), cb: cb}
}

// recoverInvariant turns a panicked model.InvariantViolation into a fatal
// log line, matching the "abort with diagnostic" handling required for an
// InvariantViolation — this is the one place in the core that recovers a
// panic, and it always re-panics after logging so the process still exits.
func recoverInvariant(op string) {
	if r := recover(); r != nil {
		if iv, ok := r.(*model.InvariantViolation); ok {
			mlog.L().WithField("op", op).Errorf("invariant violated: %s: %s", iv.Invariant, iv.Detail)
		}
		panic(r)
	}
}

// BridgeAdded registers a newly appeared Linux bridge.
func (o *Orchestrator) BridgeAdded(ifindex int, ifname string, mac [6]byte) {
	defer recoverInvariant("bridge_added")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	if _, exists := o.bridges[ifindex]; exists {
		return
	}
	o.bridges[ifindex] = model.NewBridge(ifindex, ifname, mac)
}

// BridgeRemoved destroys a bridge and every port/tree/PTP it owned.
func (o *Orchestrator) BridgeRemoved(ifindex int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	delete(o.bridges, ifindex)
}

// PortAdded attaches a newly joined kernel bridge port. portSpec is a
// pre-populated model.Port (identity, MAC, speed/duplex) supplied by the
// adaptation layer; the Orchestrator sets admin defaults and wires it into
// every existing tree.
func (o *Orchestrator) PortAdded(brIfindex int, portSpec *model.Port) error {
	defer recoverInvariant("port_added")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	if portSpec.ForwardingStateCache == nil {
		portSpec.ForwardingStateCache = make(map[model.VID]model.ForwardingState)
	}
	portSpec.SendRSTP = br.Version != model.VersionSTP
	portSpec.MDelayWhile = uint16(br.MigrateTime)
	if !portSpec.AdminEdge {
		// Listen window before autoEdge may declare the port an edge.
		portSpec.EdgeDelayWhile = uint16(br.MigrateTime)
	}
	br.AddPort(portSpec)
	o.runToFixedPoint(br)
	return nil
}

// PortRemoved detaches a port on kernel removal.
func (o *Orchestrator) PortRemoved(brIfindex, portIfindex int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	br.RemovePort(portIfindex)
	o.runToFixedPoint(br)
	return nil
}

// LinkState applies a netlink link-state change: up/down plus the
// ethtool-queried speed/duplex.
func (o *Orchestrator) LinkState(brIfindex, portIfindex int, up bool, speed uint32, duplex model.Duplex) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	p := br.Port(portIfindex)
	if p == nil {
		return fmt.Errorf("%w: port ifindex %d", model.ErrUnknownPort, portIfindex)
	}
	wasEnabled := p.PortEnabled
	p.PortEnabled = up && !p.AdministrativelyShutByGuard
	p.Speed = speed
	p.Duplex = duplex
	if !up {
		p.AdministrativelyShutByGuard = false
	}
	if up && !wasEnabled && !p.AdminEdge {
		p.EdgeDelayWhile = uint16(br.MigrateTime)
	}
	o.runToFixedPoint(br)
	return nil
}

// BPDUReceived decodes frameBytes and drives PRX/PIM for every tree the
// frame describes. A MalformedFrame error is absorbed here: the counter
// increment is the caller's responsibility (adaptation-layer stats), the
// core just declines to mutate state.
func (o *Orchestrator) BPDUReceived(brIfindex, portIfindex int, frameBytes []byte) error {
	defer recoverInvariant("bpdu_received")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	p := br.Port(portIfindex)
	if p == nil {
		return fmt.Errorf("%w: port ifindex %d", model.ErrUnknownPort, portIfindex)
	}
	if p.BPDUFilter {
		return nil
	}
	if p.BPDUGuard {
		p.AdministrativelyShutByGuard = true
		p.PortEnabled = false
		if o.cb.SetPortState != nil {
			o.cb.SetPortState(portIfindex, model.CIST, model.FwdDisabled)
		}
		return nil
	}

	frame, err := bpdu.Decode(frameBytes)
	if err != nil {
		mlog.L().WithField("bridge", brIfindex).WithField("port", portIfindex).Debugf("dropping malformed BPDU: %v", err)
		return nil
	}

	if frame.Kind == bpdu.KindMST && frame.ConfigDigest != br.Digest {
		// Region mismatch: treat the boundary as CIST-only by zeroing
		// the MSTI list before it reaches PRX.
		frame.MSTI = nil
	}

	ptpsByMSTID := make(map[model.MSTID]*model.PerTreePort, len(br.Trees))
	for _, t := range br.Trees {
		if ptp, ok := t.Ports[p.Index]; ok {
			ptpsByMSTID[t.MSTID] = ptp
		}
	}
	machines.ProcessReceived(p, ptpsByMSTID, frame)
	o.runToFixedPoint(br)
	return nil
}

// Tick advances every bridge's timers by one second and runs each to a
// fixed point. A late tick catches up by being invoked multiple times;
// Tick itself always represents exactly one second.
func (o *Orchestrator) Tick() {
	defer recoverInvariant("tick")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	for _, br := range o.bridges {
		for _, p := range br.Ports {
			var ptps []*model.PerTreePort
			for _, t := range br.Trees {
				if ptp, ok := t.Ports[p.Index]; ok {
					ptps = append(ptps, ptp)
				}
			}
			machines.ApplyPortTick(br, p, ptps)
		}
		o.runToFixedPoint(br)
	}
}

// runToFixedPoint builds the declared-order machine list for br and
// drives it to quiescence: PIM/PRS/PRT/PST/TCM per tree-port/tree, PPM/BDM
// per port. PTX runs last and outside the Driver (it is write-only — it
// never changes state the other machines read, so it cannot affect the
// fixed point) and its own transmissions are produced synchronously within
// this same call, before the event loop returns.
func (o *Orchestrator) runToFixedPoint(br *model.Bridge) {
	var ms []sm.Machine
	for _, t := range br.Trees {
		for _, ptp := range t.Ports {
			ms = append(ms, &machines.PortInformation{Port: ptp.Port, Tree: t, PTP: ptp})
		}
		ms = append(ms, &machines.RoleSelection{Bridge: br, Tree: t})
		for _, ptp := range t.Ports {
			ms = append(ms, &machines.PortRoleTransitions{Bridge: br, Port: ptp.Port, Tree: t, PTP: ptp})
			ms = append(ms, &machines.PortStateTransition{
				Port: ptp.Port, Tree: t, PTP: ptp,
				OnStateChange: func(port *model.Port, mstid model.MSTID, state model.ForwardingState) {
					if o.cb.SetPortState != nil {
						o.cb.SetPortState(port.IfIndex, mstid, state)
					}
				},
			})
			ms = append(ms, &machines.TopologyChange{
				Port: ptp.Port, Tree: t, PTP: ptp,
				OnFlushFDB: func(port *model.Port, mstid model.MSTID) {
					if o.cb.FlushFDB != nil {
						o.cb.FlushFDB(port.IfIndex, mstid)
					}
				},
				OnSendTCN: func(port *model.Port) {
					if o.cb.TxBPDU != nil {
						var f bpdu.Frame
						f.EncodeTCN()
						o.cb.TxBPDU(port.IfIndex, f.Bytes())
					}
				},
			})
		}
	}
	for _, p := range br.Ports {
		ms = append(ms, &machines.PortProtocolMigration{Bridge: br, Port: p})
		ms = append(ms, &machines.BridgeDetection{Port: p})
	}

	d := sm.Driver{Machines: ms}
	d.RunToFixedPoint(64 * (len(br.Ports) + 1))

	o.transmitAll(br)
}

// transmitAll runs PTX for every port once the fixed point is reached. PTX
// is deliberately outside the Driver: it only reads state and calls
// Send/cb.TxBPDU, so running it once per settle (rather than once per pass)
// avoids redundant transmissions of the same BPDU mid-convergence.
func (o *Orchestrator) transmitAll(br *model.Bridge) {
	cist := br.CIST()
	var mstis []*model.Tree
	for _, t := range br.Trees {
		if t.MSTID != model.CIST {
			mstis = append(mstis, t)
		}
	}
	for _, p := range br.Ports {
		ptx := &machines.PortTransmit{
			Bridge: br, Port: p, CIST: cist, MSTIs: mstis,
			Send: func(port *model.Port, frame []byte) {
				if o.cb.TxBPDU != nil {
					o.cb.TxBPDU(port.IfIndex, frame)
				}
			},
		}
		for ptx.Step() {
		}
	}
}
