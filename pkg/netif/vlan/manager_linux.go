//go:build linux
// +build linux

package vlan

import (
	"os"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
)

// LinuxManager edits the bridge VLAN table over RTNETLINK.
type LinuxManager struct{}

func newLinuxManager() (*LinuxManager, error) {
	if os.Geteuid() != 0 {
		return nil, ErrPermissionDenied
	}
	return &LinuxManager{}, nil
}

// PortVLANs lists the VLAN entries configured on one bridge port.
func (m *LinuxManager) PortVLANs(portIfindex int) ([]Info, error) {
	table, err := netlink.BridgeVlanList()
	if err != nil {
		return nil, err
	}
	entries, ok := table[int32(portIfindex)]
	if !ok {
		return nil, nil
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, Info{
			VID:      e.Vid,
			PVID:     e.Flags&nl.BRIDGE_VLAN_INFO_PVID != 0,
			Untagged: e.Flags&nl.BRIDGE_VLAN_INFO_UNTAGGED != 0,
		})
	}
	return out, nil
}

// AddPortVLAN adds vid to a port's VLAN table.
func (m *LinuxManager) AddPortVLAN(portIfindex int, vid uint16, pvid, untagged bool) error {
	if vid < 1 || vid > 4094 {
		return ErrInvalidVID
	}
	link, err := netlink.LinkByIndex(portIfindex)
	if err != nil {
		return ErrPortNotFound
	}
	return netlink.BridgeVlanAdd(link, vid, pvid, untagged, false, false)
}

// DeletePortVLAN removes vid from a port's VLAN table.
func (m *LinuxManager) DeletePortVLAN(portIfindex int, vid uint16) error {
	if vid < 1 || vid > 4094 {
		return ErrInvalidVID
	}
	link, err := netlink.LinkByIndex(portIfindex)
	if err != nil {
		return ErrPortNotFound
	}
	return netlink.BridgeVlanDel(link, vid, false, false, false, false)
}
