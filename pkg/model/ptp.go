package model

// Role is the port role assigned by role selection.
type Role int

const (
	RoleDisabled Role = iota
	RoleRoot
	RoleDesignated
	RoleAlternate
	RoleBackup
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleDisabled:
		return "disabled"
	case RoleRoot:
		return "root"
	case RoleDesignated:
		return "designated"
	case RoleAlternate:
		return "alternate"
	case RoleBackup:
		return "backup"
	case RoleMaster:
		return "master"
	default:
		return "unknown"
	}
}

// PIMState is the Port Information machine's state.
type PIMState int

const (
	PIMDisabled PIMState = iota
	PIMAged
	PIMUpdate
	PIMCurrent
	PIMReceive
	PIMSuperiorDesignated
	PIMRepeatedDesignated
	PIMInferiorDesignated
)

// PRTState is the active sub-machine of Port Role Transitions for the
// currently assigned role.
type PRTState int

const (
	PRTDiscard PRTState = iota
	PRTLearn
	PRTForward
	PRTInit // DisabledPort / initial
)

// PSTState is the Port State Transition machine's state.
type PSTState int

const (
	PSTDiscarding PSTState = iota
	PSTLearning
	PSTForwarding
)

// TCMState is the Topology Change machine's state.
type TCMState int

const (
	TCMInactive TCMState = iota
	TCMLearning
	TCMDetected
	TCMNotifiedTCN
	TCMNotifiedTC
	TCMPropagating
	TCMAcknowledged
	TCMActive
)

// PerTreePort (PTP) bundles the per-(Port,Tree) state machine variables
// described in IEEE 802.1Q. It is created for every (Port, Tree) pair and
// destroyed symmetrically.
type PerTreePort struct {
	Index int // arena index within Tree.Ports
	Tree  *Tree
	Port  *Port

	PortID PortIdentifier // PortIdentifier within this tree (priority may differ per tree)

	// Vectors
	Designated   RootPriorityVector // this PTP's own designated-port vector
	PortPriority RootPriorityVector // best received vector currently held
	MsgPriority  RootPriorityVector // vector from the last accepted BPDU

	PortTimes       Times
	DesignatedTimes Times
	MsgTimes        Times

	Role         Role
	SelectedRole Role // role computed by PRS, copied to Role when updtInfo releases PRT

	Learning   bool
	Forwarding bool

	// PIM
	PIMState  PIMState
	RcvdMsg   bool
	UpdtInfo  bool
	NewInfo   bool // newInfoCist/newInfoMsti, per-tree view
	Proposing bool
	Proposed  bool
	Agree     bool
	Agreed    bool
	Sync      bool
	Synced    bool
	ReRoot    bool
	Disputed  bool
	InfoIs    InfoIs

	// PRS
	Selected bool
	Reselect bool

	// PRT
	PRTState PRTState
	RRWhile  uint16 // rrWhile
	RBWhile  uint16 // rbWhile
	FDWhile  uint16 // fdWhile

	// TCM
	TCMState TCMState
	TCWhile  uint16
	TCAck    bool
	TCProp   bool

	// AdminInternalPathCost overrides the speed-derived internal path cost
	// for this tree when non-zero ("mstid ... int-cost" config scope).
	AdminInternalPathCost uint32

	// AgeingTime-scoped "aged" flag, set by PIM's Aged state and cleared on
	// fresh reception.
	Aged bool

	// LastForwardingState/LastForwardingStateSet let PST (pkg/machines)
	// suppress a redundant set_port_state callback when nothing changed.
	LastForwardingState    ForwardingState
	LastForwardingStateSet bool
}

// InfoIs records where a PTP's current priority/times information came from,
// mirroring the IEEE 802.1Q infoIs variable PIM uses to pick transitions.
type InfoIs int

const (
	InfoNone InfoIs = iota
	InfoMine
	InfoReceived
	InfoAged
	InfoDisabled
)

// NewPerTreePort creates a PTP in its initial (Disabled role, Mine info)
// state for the given port within the given tree.
func NewPerTreePort(index int, tree *Tree, port *Port, portID PortIdentifier) *PerTreePort {
	return &PerTreePort{
		Index:    index,
		Tree:     tree,
		Port:     port,
		PortID:   portID,
		Role:     RoleDisabled,
		InfoIs:   InfoDisabled,
		PIMState: PIMDisabled,
		PRTState: PRTInit,
		TCMState: TCMInactive,
	}
}
