package orchestrator

import (
	"fmt"

	"github.com/mstpgo/mstpd/pkg/model"
)

// Read-only snapshots for the CLI and the HTTP monitor. Snapshots copy out of
// the live entities; nothing here retains a pointer into a Bridge, so callers
// may hold a snapshot across further events.

// BridgeStatus is the CIST-level view of one bridge.
type BridgeStatus struct {
	IfIndex int    `json:"ifindex"`
	IfName  string `json:"ifname"`
	Version string `json:"force-protocol-version"`

	BridgeID         string `json:"bridge-id"`
	DesigRoot        string `json:"designated-root"`
	RegnRoot         string `json:"regional-root"`
	RootPathCost     uint32 `json:"path-cost"`
	InternalPathCost uint32 `json:"internal-path-cost"`
	RootPort         string `json:"root-port"`

	MaxAge       uint8  `json:"max-age"`
	ForwardDelay uint8  `json:"forward-delay"`
	HelloTime    uint8  `json:"hello-time"`
	TxHoldCount  uint8  `json:"tx-hold-count"`
	MaxHops      uint8  `json:"max-hops"`
	AgeingTime   uint32 `json:"ageing-time"`

	ConfigName     string `json:"mst-config-name"`
	ConfigRevision uint16 `json:"mst-config-revision"`
	Digest         string `json:"mst-config-digest"`

	TimeSinceTC uint32 `json:"time-since-topology-change"`
	TCCount     uint32 `json:"topology-change-count"`

	MSTIList []uint16 `json:"msti-list"`
}

// TreeStatus is the per-MSTI view of one bridge.
type TreeStatus struct {
	MSTID            uint16 `json:"mstid"`
	BridgeID         string `json:"bridge-id"`
	RegnRoot         string `json:"regional-root"`
	RootPort         string `json:"root-port"`
	InternalPathCost uint32 `json:"internal-path-cost"`
	TimeSinceTC      uint32 `json:"time-since-topology-change"`
	TCCount          uint32 `json:"topology-change-count"`
}

// PortStatus is the per-(port,tree) view the CLI renders.
type PortStatus struct {
	IfIndex int    `json:"ifindex"`
	IfName  string `json:"ifname"`
	MSTID   uint16 `json:"mstid"`

	PortID     string `json:"port-id"`
	Role       string `json:"role"`
	State      string `json:"state"`
	Learning   bool   `json:"learning"`
	Forwarding bool   `json:"forwarding"`

	DesigRoot   string `json:"designated-root"`
	DesigBridge string `json:"designated-bridge"`
	DesigPort   string `json:"designated-port"`
	PathCost    uint32 `json:"path-cost"`

	AdminEdge      bool `json:"admin-edge-port"`
	AutoEdge       bool `json:"auto-edge-port"`
	OperEdge       bool `json:"oper-edge-port"`
	OperP2P        bool `json:"oper-point-to-point"`
	PortEnabled    bool `json:"enabled"`
	RestrictedRole bool `json:"restricted-role"`
	RestrictedTCN  bool `json:"restricted-tcn"`
	BPDUGuard      bool `json:"bpdu-guard-port"`
	BPDUGuardError bool `json:"bpdu-guard-error"`
	BPDUFilter     bool `json:"bpdu-filter-port"`
	NetworkPort    bool `json:"network-port"`
	DontTxmt       bool `json:"dont-txmt"`
}

// GetBridgeStatus snapshots the CIST view of one bridge.
func (o *Orchestrator) GetBridgeStatus(brIfindex int) (BridgeStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return BridgeStatus{}, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	cist := br.CIST()
	s := BridgeStatus{
		IfIndex:          br.IfIndex,
		IfName:           br.IfName,
		Version:          versionName(br.Version),
		BridgeID:         cist.BridgeID.String(),
		DesigRoot:        cist.RootPriority.RootID.String(),
		RegnRoot:         cist.RootPriority.RegionalRootID.String(),
		RootPathCost:     cist.RootPriority.ExternalPathCost,
		InternalPathCost: cist.RootPriority.InternalPathCost,
		RootPort:         rootPortName(br, cist),
		MaxAge:           br.MaxAge,
		ForwardDelay:     br.ForwardDelay,
		HelloTime:        br.HelloTime,
		TxHoldCount:      br.TxHoldCount,
		MaxHops:          br.MaxHops,
		AgeingTime:       br.AgeingTime,
		ConfigName:       configNameString(br.MSTConfigName),
		ConfigRevision:   br.MSTConfigRevision,
		Digest:           br.Digest.String(),
		TimeSinceTC:      cist.TimeSinceTopologyChange,
		TCCount:          cist.TopologyChangeCount,
	}
	for _, t := range br.Trees {
		if t.MSTID != model.CIST {
			s.MSTIList = append(s.MSTIList, uint16(t.MSTID))
		}
	}
	return s, nil
}

// GetTreeStatus snapshots one MSTI of a bridge.
func (o *Orchestrator) GetTreeStatus(brIfindex int, mstid model.MSTID) (TreeStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return TreeStatus{}, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	t := br.Tree(mstid)
	if t == nil {
		return TreeStatus{}, fmt.Errorf("%w: mstid %d", model.ErrUnknownTree, mstid)
	}
	return TreeStatus{
		MSTID:            uint16(t.MSTID),
		BridgeID:         t.BridgeID.String(),
		RegnRoot:         t.RootPriority.RegionalRootID.String(),
		RootPort:         rootPortName(br, t),
		InternalPathCost: t.RootPriority.InternalPathCost,
		TimeSinceTC:      t.TimeSinceTopologyChange,
		TCCount:          t.TopologyChangeCount,
	}, nil
}

// GetPortStatus snapshots one (port, tree) pair.
func (o *Orchestrator) GetPortStatus(brIfindex, portIfindex int, mstid model.MSTID) (PortStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return PortStatus{}, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	p := br.Port(portIfindex)
	if p == nil {
		return PortStatus{}, fmt.Errorf("%w: port ifindex %d", model.ErrUnknownPort, portIfindex)
	}
	t := br.Tree(mstid)
	if t == nil {
		return PortStatus{}, fmt.Errorf("%w: mstid %d", model.ErrUnknownTree, mstid)
	}
	ptp, ok := t.Ports[p.Index]
	if !ok {
		model.PanicInvariant("I1", fmt.Sprintf("port %d has no PTP for tree %d", p.IfIndex, mstid))
	}
	return PortStatus{
		IfIndex:        p.IfIndex,
		IfName:         p.IfName,
		MSTID:          uint16(mstid),
		PortID:         ptp.PortID.String(),
		Role:           ptp.Role.String(),
		State:          forwardingStateName(ptp),
		Learning:       ptp.Learning,
		Forwarding:     ptp.Forwarding,
		DesigRoot:      ptp.PortPriority.RootID.String(),
		DesigBridge:    ptp.PortPriority.DesignatedBridgeID.String(),
		DesigPort:      ptp.PortPriority.DesignatedPortID.String(),
		PathCost:       p.ExternalPathCost(),
		AdminEdge:      p.AdminEdge,
		AutoEdge:       p.AutoEdge,
		OperEdge:       p.OperEdge,
		OperP2P:        p.OperP2P,
		PortEnabled:    p.PortEnabled,
		RestrictedRole: p.RestrictedRole,
		RestrictedTCN:  p.RestrictedTCN,
		BPDUGuard:      p.BPDUGuard,
		BPDUGuardError: p.AdministrativelyShutByGuard,
		BPDUFilter:     p.BPDUFilter,
		NetworkPort:    p.NetworkPort,
		DontTxmt:       p.DontTxmt,
	}, nil
}

// GetMSTIList returns the MSTIDs currently instantiated on a bridge,
// excluding the CIST, in creation order.
func (o *Orchestrator) GetMSTIList(brIfindex int) ([]model.MSTID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return nil, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	var out []model.MSTID
	for _, t := range br.Trees {
		if t.MSTID != model.CIST {
			out = append(out, t.MSTID)
		}
	}
	return out, nil
}

// GetVIDToMSTID returns a copy of the bridge's VID-to-MSTID table.
func (o *Orchestrator) GetVIDToMSTID(brIfindex int) (model.VIDToMSTIDTable, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return model.VIDToMSTIDTable{}, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	return br.VIDToMSTID, nil
}

// GetMSTConfigID returns the bridge's MST configuration name, revision and
// digest.
func (o *Orchestrator) GetMSTConfigID(brIfindex int) (name string, revision uint16, digest model.ConfigurationDigest, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return "", 0, model.ConfigurationDigest{}, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	return configNameString(br.MSTConfigName), br.MSTConfigRevision, br.Digest, nil
}

// ListBridges returns the ifindexes of every managed bridge.
func (o *Orchestrator) ListBridges() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, 0, len(o.bridges))
	for ifindex := range o.bridges {
		out = append(out, ifindex)
	}
	return out
}

// ListPorts returns the ifindexes of every port of a bridge.
func (o *Orchestrator) ListPorts(brIfindex int) ([]int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	br, ok := o.bridges[brIfindex]
	if !ok {
		return nil, fmt.Errorf("%w: bridge ifindex %d", model.ErrUnknownBridge, brIfindex)
	}
	out := make([]int, 0, len(br.Ports))
	for _, p := range br.Ports {
		out = append(out, p.IfIndex)
	}
	return out, nil
}

// EventCount returns the number of Orchestrator entry-point invocations so
// far, for status/debug surfaces.
func (o *Orchestrator) EventCount() uint64 { return o.events.Load() }

func versionName(v model.ProtocolVersion) string {
	switch v {
	case model.VersionSTP:
		return "stp"
	case model.VersionRSTP:
		return "rstp"
	case model.VersionMSTP:
		return "mstp"
	default:
		return "unknown"
	}
}

func rootPortName(br *model.Bridge, t *model.Tree) string {
	if t.RootPortIndex < 0 || t.RootPortIndex >= len(br.Ports) {
		return ""
	}
	return br.Ports[t.RootPortIndex].IfName
}

func forwardingStateName(ptp *model.PerTreePort) string {
	switch {
	case ptp.Forwarding:
		return model.FwdForwarding.String()
	case ptp.Learning:
		return model.FwdLearning.String()
	case !ptp.Port.PortEnabled:
		return model.FwdDisabled.String()
	default:
		return model.FwdBlocking.String()
	}
}

func configNameString(name [32]byte) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}
