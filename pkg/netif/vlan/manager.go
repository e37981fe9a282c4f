// Package vlan reads and edits the kernel bridge VLAN table. The daemon uses
// it to translate an MSTID into the set of VIDs mapped to it when pushing
// per-VLAN forwarding state, and to mirror the kernel's VLAN membership into
// the per-port cache the CLI snapshots.
package vlan

// Manager is the kernel VLAN table surface.
type Manager interface {
	// PortVLANs lists the VLAN entries configured on one bridge port.
	PortVLANs(portIfindex int) ([]Info, error)

	// AddPortVLAN adds vid to a port's VLAN table.
	AddPortVLAN(portIfindex int, vid uint16, pvid, untagged bool) error

	// DeletePortVLAN removes vid from a port's VLAN table.
	DeletePortVLAN(portIfindex int, vid uint16) error
}

// Info is one VLAN table entry of one port.
type Info struct {
	VID      uint16
	PVID     bool
	Untagged bool
}

// NewManager creates the platform-specific VLAN manager.
func NewManager() (Manager, error) {
	return newPlatformManager()
}
