package orchestrator

import (
	"fmt"

	"github.com/mstpgo/mstpd/pkg/mlog"
	"github.com/mstpgo/mstpd/pkg/model"
)

// Configuration ingress per IEEE 802.1Q: validated set-points applied to
// Bridge/Port/Tree entities. Out-of-range numeric values are clamped with a
// warning; enum-like values are rejected outright. Every successful apply
// ends with a reselect and a fixed-point pass, so the change takes effect
// before any further BPDU is handled.

// SetBridgeConfig applies the set fields of cfg to a bridge.
func (o *Orchestrator) SetBridgeConfig(brIfindex int, cfg model.BridgeConfig) error {
	defer recoverInvariant("set_bridge_config")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}

	if cfg.ModeSet {
		switch cfg.Mode {
		case model.VersionSTP, model.VersionRSTP, model.VersionMSTP:
		default:
			return fmt.Errorf("%w: mode %d", model.ErrInvalidEnum, cfg.Mode)
		}
	}

	if cfg.ModeSet && cfg.Mode != br.Version {
		br.Version = cfg.Mode
		// Version change restarts protocol migration on every port.
		for _, p := range br.Ports {
			p.SendRSTP = br.Version != model.VersionSTP
			p.MDelayWhile = uint16(br.MigrateTime)
		}
	}
	if cfg.MaxAgeSet {
		br.MaxAge = clamp8(cfg.MaxAge, 1, model.MaxMaxAge, br.IfIndex, "max-age")
	}
	if cfg.ForwardDelaySet {
		br.ForwardDelay = clamp8(cfg.ForwardDelay, 1, model.MaxForwardDelay, br.IfIndex, "forward-delay")
	}
	if cfg.MaxHopsSet {
		br.MaxHops = clamp8(cfg.MaxHops, 1, model.MaxHopsLimit, br.IfIndex, "max-hops")
	}
	if cfg.HelloTimeSet {
		// The standard caps HelloTime at 2s; the permissive 255s clamp of the
		// reference daemon is kept, with a warning when it is exceeded.
		br.HelloTime = clamp8(cfg.HelloTime, 1, model.MaxHello, br.IfIndex, "hello")
		if br.HelloTime > 2 {
			mlog.Bridge(br.IfIndex).Warnf("hello time %ds exceeds the standard's 2s maximum", br.HelloTime)
		}
	}
	if cfg.AgeingTimeSet {
		br.AgeingTime = cfg.AgeingTime
	}
	if cfg.TxHoldCountSet {
		br.TxHoldCount = clamp8(cfg.TxHoldCount, 1, model.MaxTxHoldCount, br.IfIndex, "tx-hold-count")
	}
	if cfg.PrioritySet {
		prio, changed := model.QuantizeBridgePriority(cfg.Priority)
		if changed {
			mlog.Bridge(br.IfIndex).Warnf("bridge priority %d rounded to %d", cfg.Priority, prio)
		}
		for _, t := range br.Trees {
			if t.MSTID == model.CIST {
				t.BridgeID = model.NewBridgeIdentifier(prio, br.MAC[:])
				t.BridgeID.SysIDExt = 0
			}
		}
	}
	if cfg.ConfigNameSet {
		var name [32]byte
		copy(name[:], cfg.ConfigName)
		br.MSTConfigName = name
		br.MSTConfigRevision = cfg.ConfigRevision
	}

	reselectAll(br)
	o.runToFixedPoint(br)
	return nil
}

// SetTreeConfig applies a per-tree bridge priority.
func (o *Orchestrator) SetTreeConfig(brIfindex int, cfg model.TreeConfig) error {
	defer recoverInvariant("set_tree_config")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	t := br.Tree(cfg.MSTID)
	if t == nil {
		return fmt.Errorf("%w: mstid %d", model.ErrUnknownTree, cfg.MSTID)
	}
	if cfg.PrioritySet {
		prio, changed := model.QuantizeBridgePriority(cfg.Priority)
		if changed {
			mlog.Bridge(br.IfIndex).Warnf("tree %d priority %d rounded to %d", cfg.MSTID, cfg.Priority, prio)
		}
		t.BridgeID = model.NewBridgeIdentifier(prio, br.MAC[:])
		t.BridgeID.SysIDExt = uint16(cfg.MSTID)
	}
	reselectTree(t)
	o.runToFixedPoint(br)
	return nil
}

// SetPortConfig applies the set fields of cfg to a port. A port that was
// administratively shut by bpdu-guard is re-armed by any successful
// configuration write touching it.
func (o *Orchestrator) SetPortConfig(brIfindex, portIfindex int, cfg model.PortConfig) error {
	defer recoverInvariant("set_port_config")
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

	if cfg.P2PSet {
		switch cfg.P2P {
		case model.P2PAuto, model.P2PForceTrue, model.P2PForceFalse:
		default:
			return fmt.Errorf("%w: p2p %d", model.ErrInvalidEnum, cfg.P2P)
		}
	}

	if cfg.AdminEdgeSet {
		p.AdminEdge = cfg.AdminEdge
	}
	if cfg.AutoEdgeSet {
		p.AutoEdge = cfg.AutoEdge
	}
	if cfg.P2PSet {
		p.AdminP2P = cfg.P2P
		switch cfg.P2P {
		case model.P2PForceTrue:
			p.OperP2P = true
		case model.P2PForceFalse:
			p.OperP2P = false
		default:
			p.OperP2P = p.Duplex == model.DuplexFull
		}
	}
	if cfg.RestrictedRoleSet {
		p.RestrictedRole = cfg.RestrictedRole
	}
	if cfg.RestrictedTCNSet {
		p.RestrictedTCN = cfg.RestrictedTCN
	}
	if cfg.BPDUGuardSet {
		p.BPDUGuard = cfg.BPDUGuard
		if !cfg.BPDUGuard && p.AdministrativelyShutByGuard {
			p.AdministrativelyShutByGuard = false
		}
	}
	if cfg.BPDUFilterSet {
		p.BPDUFilter = cfg.BPDUFilter
	}
	if cfg.NetworkPortSet {
		p.NetworkPort = cfg.NetworkPort
	}
	if cfg.DontTxmtSet {
		p.DontTxmt = cfg.DontTxmt
	}
	if cfg.PrioritySet {
		prio, changed := model.QuantizePortPriority(cfg.Priority)
		if changed {
			mlog.Port(br.IfIndex, p.IfIndex).Warnf("port priority %d rounded to %d", cfg.Priority, prio)
		}
		p.Ident.Priority = prio
		for _, t := range br.Trees {
			if ptp, ok := t.Ports[p.Index]; ok {
				ptp.PortID.Priority = prio
			}
		}
	}
	if cfg.ExternalCostSet {
		p.AdminExternalPathCost = clampCost(cfg.ExternalCost, br.IfIndex, p.IfIndex, "ext-cost")
	}
	if cfg.InternalCostSet {
		cost := clampCost(cfg.InternalCost, br.IfIndex, p.IfIndex, "int-cost")
		for _, t := range br.Trees {
			if ptp, ok := t.Ports[p.Index]; ok {
				ptp.AdminInternalPathCost = cost
			}
		}
	}

	for _, t := range br.Trees {
		if ptp, ok := t.Ports[p.Index]; ok {
			ptp.Reselect = true
			ptp.Selected = false
		}
	}
	o.runToFixedPoint(br)
	return nil
}

// SetPortTreeConfig applies per-(port,tree) set-points: port priority and
// internal path cost scoped to one MSTI.
func (o *Orchestrator) SetPortTreeConfig(brIfindex, portIfindex int, cfg model.PortTreeConfig) error {
	defer recoverInvariant("set_port_tree_config")
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
	t := br.Tree(cfg.MSTID)
	if t == nil {
		return fmt.Errorf("%w: mstid %d", model.ErrUnknownTree, cfg.MSTID)
	}
	ptp, ok := t.Ports[p.Index]
	if !ok {
		model.PanicInvariant("I1", fmt.Sprintf("port %d has no PTP for tree %d", p.IfIndex, cfg.MSTID))
	}
	if cfg.PrioritySet {
		prio, changed := model.QuantizePortPriority(cfg.Priority)
		if changed {
			mlog.Tree(br.IfIndex, p.IfIndex, uint16(cfg.MSTID)).Warnf("port priority %d rounded to %d", cfg.Priority, prio)
		}
		ptp.PortID.Priority = prio
	}
	if cfg.InternalCostSet {
		ptp.AdminInternalPathCost = clampCost(cfg.InternalCost, br.IfIndex, p.IfIndex, "int-cost")
	}
	reselectTree(t)
	o.runToFixedPoint(br)
	return nil
}

// SetVIDToMSTID atomically replaces the whole VID-to-MSTID table, recomputes
// the configuration digest and reselects every MSTI (partial rewrites are
// forbidden; the table is swapped as one value).
func (o *Orchestrator) SetVIDToMSTID(brIfindex int, table model.VIDToMSTIDTable) error {
	defer recoverInvariant("set_vid_to_mstid")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	for vid, mstid := range table {
		if mstid > model.MaxMSTID {
			return fmt.Errorf("%w: vid %d maps to mstid %d", model.ErrOutOfRange, vid, mstid)
		}
	}
	table.Set(0, model.CIST)
	table.Set(4095, model.CIST)
	br.VIDToMSTID = table
	br.Digest = br.VIDToMSTID.Digest()
	reselectAll(br)
	o.runToFixedPoint(br)
	return nil
}

// CreateMSTI creates a new spanning tree instance with a PTP on every port.
func (o *Orchestrator) CreateMSTI(brIfindex int, mstid model.MSTID) error {
	defer recoverInvariant("create_msti")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	if mstid == model.CIST || mstid > model.MaxMSTID {
		return fmt.Errorf("%w: mstid %d", model.ErrOutOfRange, mstid)
	}
	t := br.AddMSTI(mstid)
	reselectTree(t)
	o.runToFixedPoint(br)
	return nil
}

// DeleteMSTI destroys an MSTI; its VIDs are remapped to the CIST.
func (o *Orchestrator) DeleteMSTI(brIfindex int, mstid model.MSTID) error {
	defer recoverInvariant("delete_msti")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events.Add(1)
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	if mstid == model.CIST {
		return model.ErrCISTCannotBeDeleted
	}
	if br.Tree(mstid) == nil {
		return fmt.Errorf("%w: mstid %d", model.ErrUnknownTree, mstid)
	}
	br.DeleteMSTI(mstid)
	reselectAll(br)
	o.runToFixedPoint(br)
	return nil
}

// Mcheck forces a port's Protocol Migration machine to re-probe the
// neighbour: sendRSTP is re-asserted (unless the bridge runs plain STP) and
// mdelayWhile restarted, exactly the mcheck control-socket operation of the
// reference daemon.
func (o *Orchestrator) Mcheck(brIfindex, portIfindex int) error {
	defer recoverInvariant("mcheck")
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
	if br.Version == model.VersionSTP {
		return nil
	}
	p.McheckPending = true
	o.runToFixedPoint(br)
	return nil
}

// SetDebugLevel applies the control socket's per-bridge "debug level" opcode.
// Level 0 restores the default; higher levels raise logrus verbosity, and the
// topmost enables per-transition state machine tracing.
func (o *Orchestrator) SetDebugLevel(brIfindex, level int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	br.DebugLevel = level
	switch {
	case level <= 0:
		_ = mlog.SetLevel("info")
		mlog.EnableTraceSM(false)
	case level == 1:
		_ = mlog.SetLevel("debug")
		mlog.EnableTraceSM(false)
	default:
		_ = mlog.SetLevel("trace")
		mlog.EnableTraceSM(true)
	}
	return nil
}

func clamp8(v, lo, hi uint8, brIfindex int, key string) uint8 {
	if v < lo {
		mlog.Bridge(brIfindex).Warnf("%s %d below minimum, clamped to %d", key, v, lo)
		return lo
	}
	if v > hi {
		mlog.Bridge(brIfindex).Warnf("%s %d above maximum, clamped to %d", key, v, hi)
		return hi
	}
	return v
}

func clampCost(v uint32, brIfindex, portIfindex int, key string) uint32 {
	if v < model.MinPathCost {
		mlog.Port(brIfindex, portIfindex).Warnf("%s %d below minimum, clamped to %d", key, v, model.MinPathCost)
		return model.MinPathCost
	}
	if v > model.MaxPathCost {
		mlog.Port(brIfindex, portIfindex).Warnf("%s %d above maximum, clamped to %d", key, v, model.MaxPathCost)
		return model.MaxPathCost
	}
	return v
}

func reselectTree(t *model.Tree) {
	for _, ptp := range t.Ports {
		ptp.Reselect = true
		ptp.Selected = false
	}
}

func reselectAll(br *model.Bridge) {
	for _, t := range br.Trees {
		reselectTree(t)
	}
}
