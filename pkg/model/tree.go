package model

// Tree is one spanning tree instance: the CIST (MSTID 0, always present) or
// an MSTI (1..4094, created/destroyed by configuration). IEEE 802.1Q
// exactly one Tree has MSTID 0 per Bridge.
type Tree struct {
	MSTID MSTID

	// BridgeID is this tree's own bridge identifier. The priority field is
	// distinct per tree (same MAC, different SysIDExt/priority nibble).
	BridgeID BridgeIdentifier

	TimeSinceTopologyChange uint32
	TopologyChangeCount     uint32

	// RootTimes / RootPriority hold the values currently held by the
	// elected root for this tree.
	RootTimes    Times
	RootPriority RootPriorityVector

	// RootPortIndex is the PTP.Index (within this tree) of the current root
	// port, or -1 if none .
	RootPortIndex int

	// Ports holds the PerTreePort bundles for every Port of the owning
	// Bridge, keyed by Port.Index.
	Ports map[int]*PerTreePort
}

// RootPriorityVector is the tree-wide elected root vector, stored in the
// plain field form (not pkg/vector.Vector) to keep pkg/model free of a
// dependency on pkg/vector; pkg/machines/roles.go converts between the two.
type RootPriorityVector struct {
	IsCIST             bool
	RootID             BridgeIdentifier
	ExternalPathCost   uint32
	RegionalRootID     BridgeIdentifier
	InternalPathCost   uint32
	DesignatedBridgeID BridgeIdentifier
	DesignatedPortID   PortIdentifier
}

// NewTree creates a Tree rooted at itself (the state before any BPDU has
// been received: every bridge initially believes it is root of every tree
// it owns).
func NewTree(id MSTID, bridgeID BridgeIdentifier) *Tree {
	return &Tree{
		MSTID:         id,
		BridgeID:      bridgeID,
		RootPortIndex: -1,
		RootPriority: RootPriorityVector{
			IsCIST:             id == CIST,
			RootID:             bridgeID,
			RegionalRootID:     bridgeID,
			DesignatedBridgeID: bridgeID,
		},
		Ports: make(map[int]*PerTreePort),
	}
}

// IsRoot reports whether this bridge currently believes itself to be the
// root of this tree (no port holds the Root role).
func (t *Tree) IsRoot() bool {
	return t.RootPortIndex < 0
}
