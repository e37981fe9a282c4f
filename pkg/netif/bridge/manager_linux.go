//go:build linux
// +build linux

package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/mstpgo/mstpd/pkg/model"
)

const sysfsClassNet = "/sys/class/net"

// Attribute numbers from linux/if_bridge.h for the per-VLAN MST control
// surface (kernel 5.18+) and the bridge boolopt carrying MST enable.
const (
	iflaBridgeMST           = 6
	iflaBridgeMSTEntry      = 1
	iflaBridgeMSTEntryMSTI  = 1
	iflaBridgeMSTEntryState = 2

	iflaBrMultiBoolopt = 46
	brBoolOptMSTEnable = 3
)

// LinuxManager drives the kernel bridge through RTNETLINK and sysfs: link
// topology and the MST control path over netlink, per-port state and FDB
// flush through the brport files (the same split the reference daemon uses).
type LinuxManager struct{}

func newLinuxManager() (*LinuxManager, error) {
	if os.Geteuid() != 0 {
		return nil, ErrPermissionDenied
	}
	return &LinuxManager{}, nil
}

// Bridges lists the kernel bridges currently present.
func (m *LinuxManager) Bridges() ([]BridgeInfo, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, wrapErr("list links", "", err)
	}
	var out []BridgeInfo
	for _, l := range links {
		if l.Type() != "bridge" {
			continue
		}
		a := l.Attrs()
		out = append(out, BridgeInfo{
			Ifindex: a.Index,
			Name:    a.Name,
			MAC:     macOf(a.HardwareAddr),
			Up:      a.OperState == netlink.OperUp,
		})
	}
	return out, nil
}

// Ports lists the interfaces enslaved to the given bridge.
func (m *LinuxManager) Ports(bridgeIfindex int) ([]PortInfo, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, wrapErr("list links", "", err)
	}
	var out []PortInfo
	for _, l := range links {
		a := l.Attrs()
		if a.MasterIndex != bridgeIfindex {
			continue
		}
		out = append(out, PortInfo{
			Ifindex:       a.Index,
			BridgeIfindex: bridgeIfindex,
			Name:          a.Name,
			MAC:           macOf(a.HardwareAddr),
			Up:            a.OperState == netlink.OperUp,
		})
	}
	return out, nil
}

// Watch subscribes to RTNETLINK link messages and classifies each into a
// bridge/port/link Event. Interfaces that are neither bridges nor bridge
// ports are dropped here, so the daemon's event loop only wakes for its own
// topology.
func (m *LinuxManager) Watch(events chan<- Event, done <-chan struct{}) error {
	updates := make(chan netlink.LinkUpdate, 64)
	if err := netlink.LinkSubscribe(updates, doneChan(done)); err != nil {
		return wrapErr("subscribe links", "", err)
	}
	go func() {
		for {
			select {
			case <-done:
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if ev, ok := classify(u); ok {
					select {
					case events <- ev:
					case <-done:
						return
					}
				}
			}
		}
	}()
	return nil
}

func classify(u netlink.LinkUpdate) (Event, bool) {
	a := u.Link.Attrs()
	ev := Event{
		Ifindex: a.Index,
		IfName:  a.Name,
		MAC:     macOf(a.HardwareAddr),
		Up:      a.OperState == netlink.OperUp,
	}
	isBridge := u.Link.Type() == "bridge"
	removed := u.Header.Type == unix.RTM_DELLINK

	switch {
	case isBridge && removed:
		ev.Kind = EventBridgeRemoved
		ev.BridgeIfindex = a.Index
	case isBridge:
		ev.Kind = EventBridgeAdded
		ev.BridgeIfindex = a.Index
	case a.MasterIndex != 0 && removed:
		ev.Kind = EventPortLeft
		ev.BridgeIfindex = a.MasterIndex
	case a.MasterIndex != 0:
		// RTM_NEWLINK for an enslaved interface is both "joined" and any
		// later link change; the daemon treats a duplicate join as a link
		// update for a known port.
		ev.Kind = EventPortJoined
		ev.BridgeIfindex = a.MasterIndex
	case removed:
		// An interface deleted after leaving its bridge: the daemon may
		// still hold it as a port, keyed by ifindex.
		ev.Kind = EventPortLeft
	default:
		return Event{}, false
	}
	return ev, true
}

// SetPortState writes the kernel brport state file, the legacy per-port
// control path that works on every kernel.
func (m *LinuxManager) SetPortState(portName string, state model.ForwardingState) error {
	path := filepath.Join(sysfsClassNet, portName, "brport", "state")
	v := strconv.Itoa(int(kernelPortState(state)))
	return wrapErr("set port state", portName, os.WriteFile(path, []byte(v), 0o644))
}

// SetMSTPortState pushes one MSTI's state for one port over RTNETLINK
// (IFLA_AF_SPEC / IFLA_BRIDGE_MST). EOPNOTSUPP from the kernel surfaces as
// ErrMSTNotSupported so the caller can fold back to per-port state.
func (m *LinuxManager) SetMSTPortState(portIfindex int, mstid uint16, state model.ForwardingState) error {
	req := nl.NewNetlinkRequest(unix.RTM_SETLINK, unix.NLM_F_ACK)
	msg := nl.NewIfInfomsg(unix.AF_BRIDGE)
	msg.Index = int32(portIfindex)
	req.AddData(msg)

	spec := nl.NewRtAttr(unix.IFLA_AF_SPEC, nil)
	mst := spec.AddRtAttr(iflaBridgeMST, nil)
	entry := mst.AddRtAttr(iflaBridgeMSTEntry|int(unix.NLA_F_NESTED), nil)
	entry.AddRtAttr(iflaBridgeMSTEntryMSTI, nl.Uint16Attr(mstid))
	entry.AddRtAttr(iflaBridgeMSTEntryState, []byte{kernelPortState(state)})
	req.AddData(spec)

	if _, err := req.Execute(unix.NETLINK_ROUTE, 0); err != nil {
		if err == unix.EOPNOTSUPP {
			return ErrMSTNotSupported
		}
		return wrapErr("set mst state", fmt.Sprintf("ifindex %d", portIfindex), err)
	}
	return nil
}

// EnableMST sets BR_BOOLOPT_MST_ENABLE on the bridge, switching the kernel
// from per-VLAN STP state to MSTI-indexed state.
func (m *LinuxManager) EnableMST(bridgeIfindex int) error {
	req := nl.NewNetlinkRequest(unix.RTM_NEWLINK, unix.NLM_F_ACK)
	msg := nl.NewIfInfomsg(unix.AF_UNSPEC)
	msg.Index = int32(bridgeIfindex)
	req.AddData(msg)

	linkInfo := nl.NewRtAttr(unix.IFLA_LINKINFO, nil)
	linkInfo.AddRtAttr(nl.IFLA_INFO_KIND, nl.NonZeroTerminated("bridge"))
	data := linkInfo.AddRtAttr(nl.IFLA_INFO_DATA, nil)

	// struct br_boolopt_multi { __u32 optval; __u32 optmask; }
	var boolopt [8]byte
	nl.NativeEndian().PutUint32(boolopt[0:4], 1<<brBoolOptMSTEnable)
	nl.NativeEndian().PutUint32(boolopt[4:8], 1<<brBoolOptMSTEnable)
	data.AddRtAttr(iflaBrMultiBoolopt, boolopt[:])
	req.AddData(linkInfo)

	if _, err := req.Execute(unix.NETLINK_ROUTE, 0); err != nil {
		if err == unix.EOPNOTSUPP || err == unix.EINVAL {
			return ErrMSTNotSupported
		}
		return wrapErr("enable mst", fmt.Sprintf("ifindex %d", bridgeIfindex), err)
	}
	return nil
}

// FlushFDB clears the learned entries behind one port via the brport flush
// file.
func (m *LinuxManager) FlushFDB(portName string) error {
	path := filepath.Join(sysfsClassNet, portName, "brport", "flush")
	return wrapErr("flush fdb", portName, os.WriteFile(path, []byte("1"), 0o644))
}

// SpeedDuplex reads the operational speed and duplex the way ethtool does,
// from the interface's sysfs attributes. Interfaces that do not report a
// speed (virtual devices, carrier down) yield 0/unknown without error.
func (m *LinuxManager) SpeedDuplex(portName string) (uint32, model.Duplex, error) {
	speedRaw, err := os.ReadFile(filepath.Join(sysfsClassNet, portName, "speed"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, model.DuplexUnknown, wrapErr("query speed", portName, ErrPortNotFound)
		}
		// carrier down reads return EINVAL
		return 0, model.DuplexUnknown, nil
	}
	speed, err := strconv.Atoi(strings.TrimSpace(string(speedRaw)))
	if err != nil || speed < 0 {
		speed = 0
	}
	duplex := model.DuplexUnknown
	if duplexRaw, err := os.ReadFile(filepath.Join(sysfsClassNet, portName, "duplex")); err == nil {
		switch strings.TrimSpace(string(duplexRaw)) {
		case "full":
			duplex = model.DuplexFull
		case "half":
			duplex = model.DuplexHalf
		}
	}
	return uint32(speed), duplex, nil
}

// SetAgeingTime writes the bridge ageing time (sysfs carries it in
// USER_HZ-scaled units, i.e. centiseconds).
func (m *LinuxManager) SetAgeingTime(bridgeName string, seconds uint32) error {
	path := filepath.Join(sysfsClassNet, bridgeName, "bridge", "ageing_time")
	v := strconv.FormatUint(uint64(seconds)*100, 10)
	return wrapErr("set ageing time", bridgeName, os.WriteFile(path, []byte(v), 0o644))
}

func macOf(hw []byte) [6]byte {
	var out [6]byte
	copy(out[:], hw)
	return out
}

// doneChan adapts a receive-only done channel to the bidirectional channel
// netlink.LinkSubscribe wants.
func doneChan(done <-chan struct{}) chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-done
		close(ch)
	}()
	return ch
}
