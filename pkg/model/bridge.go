package model

// Bridge is one managed Linux bridge.
type Bridge struct {
	IfIndex int // kernel ifindex, the Orchestrator's registry key
	IfName  string
	MAC     [6]byte

	Version ProtocolVersion

	MaxAge       uint8
	ForwardDelay uint8
	HelloTime    uint8
	TxHoldCount  uint8
	MigrateTime  uint8 // fixed 3s, kept as a field so tests can read it
	MaxHops      uint8
	AgeingTime   uint32

	MSTConfigName     [32]byte
	MSTConfigRevision uint16
	VIDToMSTID        VIDToMSTIDTable
	Digest            ConfigurationDigest

	// Ports and Trees are arenas: index is stable for the entity's lifetime,
	// removal compacts by swapping with the last element and remapping the
	// moved entity's Index.
	Ports []*Port
	Trees []*Tree // Trees[0] is always the CIST

	// DebugLevel gates pkg/mlog's TraceSM level for this bridge, settable via
	// the control socket's "debug level" opcode.
	DebugLevel int
}

// NewBridge creates a bridge with default timer values (IEEE 802.1Q defaults)
// and a CIST tree already attached.
func NewBridge(ifindex int, ifname string, mac [6]byte) *Bridge {
	b := &Bridge{
		IfIndex:      ifindex,
		IfName:       ifname,
		MAC:          mac,
		Version:      VersionMSTP,
		MaxAge:       20,
		ForwardDelay: 15,
		HelloTime:    2,
		TxHoldCount:  6,
		MigrateTime:  3,
		MaxHops:      20,
		AgeingTime:   300,
		VIDToMSTID:   NewVIDToMSTIDTable(),
	}
	b.Digest = b.VIDToMSTID.Digest()
	cistID := NewBridgeIdentifier(32768, hwFrom(mac))
	b.Trees = append(b.Trees, NewTree(CIST, cistID))
	return b
}

func hwFrom(mac [6]byte) []byte { return mac[:] }

// CIST returns this bridge's CIST tree (always Trees[0] by construction).
func (b *Bridge) CIST() *Tree { return b.Trees[0] }

// Tree returns the tree with the given MSTID, or nil if it does not exist.
func (b *Bridge) Tree(id MSTID) *Tree {
	for _, t := range b.Trees {
		if t.MSTID == id {
			return t
		}
	}
	return nil
}

// Port returns the port with the given ifindex, or nil.
func (b *Bridge) Port(ifindex int) *Port {
	for _, p := range b.Ports {
		if p.IfIndex == ifindex {
			return p
		}
	}
	return nil
}

// AddMSTI creates a new (empty of ports) tree for mstid and attaches a PTP to
// it for every existing port, .
func (b *Bridge) AddMSTI(mstid MSTID) *Tree {
	if t := b.Tree(mstid); t != nil {
		return t
	}
	treeBridgeID := NewBridgeIdentifier(32768, hwFrom(b.MAC))
	treeBridgeID.SysIDExt = uint16(mstid)
	t := NewTree(mstid, treeBridgeID)
	b.Trees = append(b.Trees, t)
	for _, p := range b.Ports {
		attachPTP(t, p)
	}
	return t
}

// DeleteMSTI removes mstid's tree and remaps its VIDs back to the CIST, per
// IEEE 802.1Q Tree lifecycle.
func (b *Bridge) DeleteMSTI(mstid MSTID) {
	if mstid == CIST {
		return
	}
	for i, t := range b.Trees {
		if t.MSTID == mstid {
			b.Trees = append(b.Trees[:i], b.Trees[i+1:]...)
			break
		}
	}
	b.VIDToMSTID.RemapInstance(mstid)
	b.Digest = b.VIDToMSTID.Digest()
}

// AddPort appends a new port and attaches a PTP for it to every tree.
func (b *Bridge) AddPort(p *Port) {
	p.Index = len(b.Ports)
	if p.ForwardingStateCache == nil {
		p.ForwardingStateCache = make(map[VID]ForwardingState)
	}
	b.Ports = append(b.Ports, p)
	for _, t := range b.Trees {
		attachPTP(t, p)
	}
}

// RemovePort detaches every PTP for p and compacts the Ports arena,
// remapping the moved port's Index and its PTPs' Port pointer stays valid
// since PerTreePort holds a *Port, not an index.
func (b *Bridge) RemovePort(ifindex int) {
	idx := -1
	for i, p := range b.Ports {
		if p.IfIndex == ifindex {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	removed := b.Ports[idx]
	for _, t := range b.Trees {
		delete(t.Ports, removed.Index)
		if t.RootPortIndex == removed.Index {
			t.RootPortIndex = -1
		}
	}
	last := len(b.Ports) - 1
	b.Ports[idx] = b.Ports[last]
	b.Ports[idx].Index = idx
	for _, t := range b.Trees {
		if ptp, ok := t.Ports[last]; ok {
			delete(t.Ports, last)
			ptp.Index = idx
			t.Ports[idx] = ptp
		}
	}
	b.Ports = b.Ports[:last]
}

func attachPTP(t *Tree, p *Port) {
	portID := PortIdentifier{Priority: 128, Number: uint16(p.IfIndex & 0x0FFF)}
	ptp := NewPerTreePort(p.Index, t, p, portID)
	ptp.Designated = t.RootPriority
	ptp.Designated.DesignatedPortID = portID
	t.Ports[p.Index] = ptp
}
