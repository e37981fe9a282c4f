// mstpd is the MSTP daemon: it watches kernel bridges over RTNETLINK, runs
// the protocol core for each, exchanges BPDUs through per-port raw sockets,
// and pushes the computed forwarding states back into the kernel. All
// protocol work happens on a single event-loop goroutine; the control socket
// and the HTTP monitor serve from their own goroutines against the
// Orchestrator's synchronized surface.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mstpgo/mstpd/pkg/audit"
	"github.com/mstpgo/mstpd/pkg/ctlsock"
	"github.com/mstpgo/mstpd/pkg/daemoncfg"
	"github.com/mstpgo/mstpd/pkg/mlog"
	"github.com/mstpgo/mstpd/pkg/model"
	"github.com/mstpgo/mstpd/pkg/monitor"
	"github.com/mstpgo/mstpd/pkg/mstpconf"
	"github.com/mstpgo/mstpd/pkg/netif/bpdutx"
	"github.com/mstpgo/mstpd/pkg/netif/bridge"
	"github.com/mstpgo/mstpd/pkg/netif/vlan"
	"github.com/mstpgo/mstpd/pkg/orchestrator"
)

func main() {
	var (
		cfgPath = flag.String("c", "", "daemon configuration file (JSON)")
		verbose = flag.Bool("v", false, "log at debug level")
	)
	flag.Parse()

	cfg := daemoncfg.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = daemoncfg.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "mstpd: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.LogJSON {
		mlog.SetJSONFormat()
	}
	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	if err := mlog.SetLevel(level); err != nil {
		fmt.Fprintf(os.Stderr, "mstpd: bad log level %q\n", level)
		os.Exit(1)
	}

	d, err := newDaemon(cfg)
	if err != nil {
		mlog.L().Fatalf("startup: %v", err)
	}
	if err := d.run(); err != nil {
		mlog.L().Fatalf("event loop: %v", err)
	}
}

// rxBPDU is one inbound BPDU handed from a socket goroutine to the event
// loop.
type rxBPDU struct {
	brIfindex   int
	portIfindex int
	frame       []byte
}

// daemon wires the adaptation layer to the Orchestrator and owns the event
// loop.
type daemon struct {
	cfg   *daemoncfg.Config
	brMgr bridge.Manager
	vlMgr vlan.Manager
	orch  *orchestrator.Orchestrator
	hist  *audit.Log // nil when disabled
	mon   *monitor.Server

	// Name bookkeeping for the control socket and monitor resolvers. Only
	// the event loop writes; readers go through the Orchestrator-independent
	// snapshot methods below, guarded by the maps being replaced wholesale.
	names *nameTable

	sockets    map[int]bpdutx.PortSocket // port ifindex -> raw socket
	portBridge map[int]int               // port ifindex -> bridge ifindex

	// mstSupported records whether the kernel accepted per-VLAN MST state
	// for a bridge; on first EOPNOTSUPP the daemon folds MSTI states into
	// the per-port value.
	mstSupported map[int]bool

	linkEvents chan bridge.Event
	rxEvents   chan rxBPDU
	done       chan struct{}
}

func newDaemon(cfg *daemoncfg.Config) (*daemon, error) {
	brMgr, err := bridge.NewManager()
	if err != nil {
		return nil, err
	}
	vlMgr, err := vlan.NewManager()
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:          cfg,
		brMgr:        brMgr,
		vlMgr:        vlMgr,
		names:        newNameTable(),
		sockets:      make(map[int]bpdutx.PortSocket),
		portBridge:   make(map[int]int),
		mstSupported: make(map[int]bool),
		linkEvents:   make(chan bridge.Event, 256),
		rxEvents:     make(chan rxBPDU, 256),
		done:         make(chan struct{}),
	}

	d.orch = orchestrator.New(orchestrator.Callbacks{
		TxBPDU:       d.txBPDU,
		SetPortState: d.setPortState,
		FlushFDB:     d.flushFDB,
	})

	if cfg.Audit.Enabled {
		if d.hist, err = audit.Open(cfg.Audit.Path, 10000); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *daemon) run() error {
	// Control socket.
	auth := ctlsock.NewAuthenticator(d.cfg.Auth.Passphrase,
		time.Duration(d.cfg.Auth.TokenTTLSeconds)*time.Second)
	ctl := ctlsock.NewServer(d.orch, d.names, auth)
	if err := ctl.Listen(d.cfg.ControlSocketPath); err != nil {
		return err
	}
	defer ctl.Close()
	go func() {
		if err := ctl.Serve(); err != nil {
			mlog.L().Errorf("control socket: %v", err)
		}
	}()

	// HTTP/WebSocket monitor.
	if d.cfg.Monitoring.Enabled {
		d.mon = monitor.NewServer(d.orch, d.names, d.hist)
		if err := d.mon.Start(d.cfg.Monitoring.ListenAddr); err != nil {
			return err
		}
		defer d.mon.Stop()
	}

	// Netlink watch, then initial discovery (watch first so nothing joins
	// unseen between the two).
	if err := d.brMgr.Watch(d.linkEvents, d.done); err != nil {
		return err
	}
	d.discover()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	// The monotonic one-second tick. A late tick catches up by draining the
	// elapsed whole seconds, invoking Tick once per second owed.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastTick := time.Now()

	mlog.L().Info("mstpd running")
	for {
		select {
		case <-sig:
			mlog.L().Info("shutting down")
			close(d.done)
			for _, s := range d.sockets {
				s.Close()
			}
			if d.hist != nil {
				d.hist.Close()
			}
			return nil

		case now := <-ticker.C:
			for ; now.Sub(lastTick) >= time.Second; lastTick = lastTick.Add(time.Second) {
				d.orch.Tick()
			}

		case ev := <-d.linkEvents:
			d.handleLinkEvent(ev)

		case rx := <-d.rxEvents:
			if err := d.orch.BPDUReceived(rx.brIfindex, rx.portIfindex, rx.frame); err != nil {
				mlog.Port(rx.brIfindex, rx.portIfindex).Debugf("bpdu dropped: %v", err)
			}
		}
	}
}

// discover registers every managed bridge and its ports that already exist.
func (d *daemon) discover() {
	bridges, err := d.brMgr.Bridges()
	if err != nil {
		mlog.L().Errorf("bridge discovery: %v", err)
		return
	}
	for _, b := range bridges {
		if !d.cfg.ManagesBridge(b.Name) {
			continue
		}
		d.addBridge(b.Ifindex, b.Name, b.MAC)
		ports, err := d.brMgr.Ports(b.Ifindex)
		if err != nil {
			mlog.Bridge(b.Ifindex).Errorf("port discovery: %v", err)
			continue
		}
		for _, p := range ports {
			d.addPort(b.Ifindex, p)
		}
	}
}

func (d *daemon) handleLinkEvent(ev bridge.Event) {
	switch ev.Kind {
	case bridge.EventBridgeAdded:
		if !d.cfg.ManagesBridge(ev.IfName) {
			return
		}
		if _, known := d.names.bridgeByIfindex(ev.Ifindex); !known {
			d.addBridge(ev.Ifindex, ev.IfName, ev.MAC)
		}

	case bridge.EventBridgeRemoved:
		d.orch.BridgeRemoved(ev.Ifindex)
		d.names.removeBridge(ev.Ifindex)
		delete(d.mstSupported, ev.Ifindex)

	case bridge.EventPortJoined:
		if _, known := d.names.bridgeByIfindex(ev.BridgeIfindex); !known {
			return
		}
		if _, known := d.portBridge[ev.Ifindex]; known {
			d.refreshLink(ev.BridgeIfindex, ev.Ifindex, ev.IfName, ev.Up)
			return
		}
		d.addPort(ev.BridgeIfindex, bridge.PortInfo{
			Ifindex:       ev.Ifindex,
			BridgeIfindex: ev.BridgeIfindex,
			Name:          ev.IfName,
			MAC:           ev.MAC,
			Up:            ev.Up,
		})

	case bridge.EventPortLeft:
		brIfindex, known := d.portBridge[ev.Ifindex]
		if !known {
			return
		}
		if s, ok := d.sockets[ev.Ifindex]; ok {
			s.Close()
			delete(d.sockets, ev.Ifindex)
		}
		if err := d.orch.PortRemoved(brIfindex, ev.Ifindex); err != nil {
			mlog.Port(brIfindex, ev.Ifindex).Warnf("remove: %v", err)
		}
		d.names.removePort(brIfindex, ev.Ifindex)
		delete(d.portBridge, ev.Ifindex)

	case bridge.EventLinkChanged:
		if brIfindex, known := d.portBridge[ev.Ifindex]; known {
			d.refreshLink(brIfindex, ev.Ifindex, ev.IfName, ev.Up)
		}
	}
}

func (d *daemon) addBridge(ifindex int, name string, mac [6]byte) {
	d.orch.BridgeAdded(ifindex, name, mac)
	d.names.addBridge(ifindex, name)

	bf, err := mstpconf.LoadBridgeFile(d.cfg.ConfDir, name)
	if err != nil {
		mlog.Bridge(ifindex).Errorf("bridge config: %v", err)
		bf = &mstpconf.BridgeFile{}
	}
	if err := d.orch.SetBridgeConfig(ifindex, bf.Bridge); err != nil {
		mlog.Bridge(ifindex).Errorf("apply bridge config: %v", err)
	}
	for _, mstid := range bf.MSTIDs {
		if err := d.orch.CreateMSTI(ifindex, mstid); err != nil {
			mlog.Bridge(ifindex).Errorf("create msti %d: %v", mstid, err)
		}
	}
	for _, tc := range bf.Trees {
		if err := d.orch.SetTreeConfig(ifindex, tc); err != nil {
			mlog.Bridge(ifindex).Errorf("apply tree config: %v", err)
		}
	}
	if bf.VIDToMSTIDSet {
		if err := d.orch.SetVIDToMSTID(ifindex, bf.VIDToMSTID); err != nil {
			mlog.Bridge(ifindex).Errorf("apply vid table: %v", err)
		}
	}

	// Try per-VLAN MST mode; fall back silently to per-port state.
	switch err := d.brMgr.EnableMST(ifindex); err {
	case nil:
		d.mstSupported[ifindex] = true
	case bridge.ErrMSTNotSupported:
		d.mstSupported[ifindex] = false
	default:
		mlog.Bridge(ifindex).Warnf("enable mst: %v", err)
		d.mstSupported[ifindex] = false
	}
}

func (d *daemon) addPort(brIfindex int, p bridge.PortInfo) {
	speed, duplex, err := d.brMgr.SpeedDuplex(p.Name)
	if err != nil {
		mlog.Port(brIfindex, p.Ifindex).Debugf("speed query: %v", err)
	}
	spec := &model.Port{
		Ident:                model.PortIdentifier{Priority: 128, Number: uint16(p.Ifindex & 0x0FFF)},
		IfName:               p.Name,
		IfIndex:              p.Ifindex,
		MAC:                  p.MAC,
		Speed:                speed,
		Duplex:               duplex,
		ForwardingStateCache: make(map[model.VID]model.ForwardingState),
	}
	// Prime the per-VLAN state cache with the port's kernel VLAN membership,
	// so the snapshot surfaces render per-VLAN state from the start.
	if vlans, err := d.vlMgr.PortVLANs(p.Ifindex); err == nil {
		for _, v := range vlans {
			spec.ForwardingStateCache[model.VID(v.VID)] = model.FwdBlocking
		}
	}
	if err := d.orch.PortAdded(brIfindex, spec); err != nil {
		mlog.Port(brIfindex, p.Ifindex).Errorf("add port: %v", err)
		return
	}
	d.names.addPort(brIfindex, p.Ifindex, p.Name)
	d.portBridge[p.Ifindex] = brIfindex

	brName := d.names.BridgeName(brIfindex)
	pf, err := mstpconf.LoadPortFile(d.cfg.ConfDir, brName, p.Name)
	if err != nil {
		mlog.Port(brIfindex, p.Ifindex).Errorf("port config: %v", err)
		pf = &mstpconf.PortFile{}
	}
	if err := d.orch.SetPortConfig(brIfindex, p.Ifindex, pf.Port); err != nil {
		mlog.Port(brIfindex, p.Ifindex).Errorf("apply port config: %v", err)
	}
	for _, tc := range pf.Trees {
		if err := d.orch.SetPortTreeConfig(brIfindex, p.Ifindex, tc); err != nil {
			mlog.Port(brIfindex, p.Ifindex).Errorf("apply port tree config: %v", err)
		}
	}

	sock, err := bpdutx.Open(p.Ifindex, p.MAC, func(ifindex int, _ [6]byte, payload []byte) {
		frame := make([]byte, len(payload))
		copy(frame, payload)
		select {
		case d.rxEvents <- rxBPDU{brIfindex: brIfindex, portIfindex: ifindex, frame: frame}:
		default:
			mlog.Port(brIfindex, ifindex).Warn("rx queue full, BPDU dropped")
		}
	})
	if err != nil {
		mlog.Port(brIfindex, p.Ifindex).Errorf("open packet socket: %v", err)
	} else {
		d.sockets[p.Ifindex] = sock
	}

	if err := d.orch.LinkState(brIfindex, p.Ifindex, p.Up, speed, duplex); err != nil {
		mlog.Port(brIfindex, p.Ifindex).Warnf("link state: %v", err)
	}
}

func (d *daemon) refreshLink(brIfindex, portIfindex int, name string, up bool) {
	speed, duplex, _ := d.brMgr.SpeedDuplex(name)
	if err := d.orch.LinkState(brIfindex, portIfindex, up, speed, duplex); err != nil {
		mlog.Port(brIfindex, portIfindex).Warnf("link state: %v", err)
	}
}

// txBPDU queues an outgoing BPDU to the port's raw socket. Kernel errors are
// logged and absorbed; the next hello retransmits.
func (d *daemon) txBPDU(portIfindex int, frame []byte) {
	s, ok := d.sockets[portIfindex]
	if !ok {
		return
	}
	if err := s.Send(frame); err != nil {
		mlog.L().WithField("port", portIfindex).Warnf("tx bpdu: %v", err)
	}
}

// setPortState pushes a forwarding-state decision into the kernel, per-VLAN
// when the bridge runs MST mode and folded to per-port otherwise.
func (d *daemon) setPortState(portIfindex int, mstid model.MSTID, state model.ForwardingState) {
	brIfindex := d.portBridge[portIfindex]
	name := d.names.PortName(brIfindex, portIfindex)
	if name == "" {
		return
	}

	var err error
	if d.mstSupported[brIfindex] {
		err = d.brMgr.SetMSTPortState(portIfindex, uint16(mstid), state)
	} else if mstid == model.CIST {
		// Without kernel MST the CIST state is the port state; MSTI
		// decisions fold into it and are dropped here.
		err = d.brMgr.SetPortState(name, state)
	}
	if err != nil {
		mlog.Port(brIfindex, portIfindex).Warnf("set port state: %v", err)
	}

	if d.hist != nil {
		d.hist.Record(audit.EventStateChange, d.names.BridgeName(brIfindex), name,
			uint16(mstid), state.String())
	}
	if d.mon != nil {
		d.mon.Broadcast(&monitor.Event{
			Type:   monitor.EventPortState,
			Bridge: d.names.BridgeName(brIfindex),
			Port:   name,
			MSTID:  uint16(mstid),
			Data:   state.String(),
		})
	}
}

// flushFDB clears learned MACs behind a port after a topology change.
func (d *daemon) flushFDB(portIfindex int, mstid model.MSTID) {
	brIfindex := d.portBridge[portIfindex]
	name := d.names.PortName(brIfindex, portIfindex)
	if name == "" {
		return
	}
	if err := d.brMgr.FlushFDB(name); err != nil {
		mlog.Port(brIfindex, portIfindex).Warnf("flush fdb: %v", err)
	}
	if d.hist != nil {
		d.hist.Record(audit.EventTopologyChange, d.names.BridgeName(brIfindex), name,
			uint16(mstid), "fdb flushed")
	}
	if d.mon != nil {
		d.mon.Broadcast(&monitor.Event{
			Type:   monitor.EventTopologyChange,
			Bridge: d.names.BridgeName(brIfindex),
			Port:   name,
			MSTID:  uint16(mstid),
		})
	}
}
