// Package bpdutx owns the raw-socket half of the adaptation layer: one
// AF_PACKET socket per bridge port, bound to the port's ifindex with a
// classic BPF program that admits only frames addressed to the spanning tree
// multicast group. Outbound frames are built with gopacket's Ethernet layer
// and handed straight to the kernel send buffer; inbound frames are stripped
// down to the LLC-plus-BPDU payload pkg/bpdu decodes.
package bpdutx

import "errors"

// BridgeGroupAddress is the reserved multicast destination every BPDU is
// sent to (01:80:C2:00:00:00).
var BridgeGroupAddress = [6]byte{0x01, 0x80, 0xC2, 0x00, 0x00, 0x00}

// LLC header carried in front of every BPDU: DSAP 0x42, SSAP 0x42, UI.
var llcHeader = [3]byte{0x42, 0x42, 0x03}

// maxFrame bounds the receive buffer: an untagged Ethernet frame.
const maxFrame = 1518

var (
	// ErrUnsupportedPlatform is returned on systems without AF_PACKET.
	ErrUnsupportedPlatform = errors.New("raw BPDU sockets are only supported on Linux")

	// ErrSocketClosed is returned by Send after Close.
	ErrSocketClosed = errors.New("port socket is closed")
)

// RxFunc receives one inbound BPDU payload (LLC header included) together
// with the kernel ifindex the frame arrived on and the neighbour's source
// MAC. The payload slice is only valid for the duration of the call.
type RxFunc func(ifindex int, srcMAC [6]byte, payload []byte)

// PortSocket is one port's raw socket.
type PortSocket interface {
	// Send transmits payload (LLC header included) to the bridge group
	// address. It queues to the OS send buffer without waiting.
	Send(payload []byte) error

	// Ifindex returns the bound interface index.
	Ifindex() int

	// Close tears the socket down and stops the receive loop.
	Close() error
}

// Open creates a PortSocket bound to ifindex. srcMAC is used as the
// Ethernet source of outbound frames; rx is invoked from the socket's
// receive goroutine for every admitted frame.
func Open(ifindex int, srcMAC [6]byte, rx RxFunc) (PortSocket, error) {
	return openPlatform(ifindex, srcMAC, rx)
}
