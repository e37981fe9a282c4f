// Package model holds the MSTP data model: bridge, port, tree and
// per-tree-per-port entities, and the identifiers and timer values they are
// built from. Nothing in this package runs a state machine; it only stores
// the state the machines in pkg/machines read and mutate.
package model

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MSTID identifies a spanning tree instance. 0 is the CIST; 1..4094 are MSTIs.
type MSTID uint16

// CIST is the Common and Internal Spanning Tree instance identifier.
const CIST MSTID = 0

// MaxMSTID is the highest legal MSTI identifier.
const MaxMSTID MSTID = 4094

// VID is a 12-bit VLAN identifier. 0 and 4095 are reserved and always map
// to the CIST.
type VID uint16

// MaxVID is the highest legal VLAN identifier carried in the vid-to-mstid table.
const MaxVID VID = 4094

// BridgeIdentifier is the 8-byte (priority<<48 | macaddr) bridge identifier
// used in priority vectors: 4-bit priority, 12-bit system-id-extension, then
// a 48-bit MAC address.
type BridgeIdentifier struct {
	Priority   uint8  // 0..15 (the top nibble of the 16-bit priority field)
	SysIDExt   uint16 // 12 bits, usually the MSTID for per-tree bridge ids
	MACAddress [6]byte
}

// NewBridgeIdentifier builds a BridgeIdentifier from a quantised 16-bit
// priority (a multiple of 4096) and a MAC address.
func NewBridgeIdentifier(priority16 uint16, mac net.HardwareAddr) BridgeIdentifier {
	var id BridgeIdentifier
	id.Priority = uint8(priority16 >> 12)
	id.SysIDExt = priority16 & 0x0FFF
	copy(id.MACAddress[:], mac)
	return id
}

// Priority16 reassembles the 16-bit priority field (priority nibble plus
// system id extension) as carried on the wire.
func (b BridgeIdentifier) Priority16() uint16 {
	return uint16(b.Priority)<<12 | (b.SysIDExt & 0x0FFF)
}

// Bytes renders the 8-byte wire form: 2-byte priority field then 6-byte MAC.
func (b BridgeIdentifier) Bytes() [8]byte {
	var out [8]byte
	binary.BigEndian.PutUint16(out[0:2], b.Priority16())
	copy(out[2:8], b.MACAddress[:])
	return out
}

// BridgeIdentifierFromBytes parses the 8-byte wire form.
func BridgeIdentifierFromBytes(b []byte) BridgeIdentifier {
	p16 := binary.BigEndian.Uint16(b[0:2])
	var id BridgeIdentifier
	id.Priority = uint8(p16 >> 12)
	id.SysIDExt = p16 & 0x0FFF
	copy(id.MACAddress[:], b[2:8])
	return id
}

// Compare implements the total order used for bridge-id tie-breaks: lower
// priority field wins, then lower MAC address.
func (b BridgeIdentifier) Compare(o BridgeIdentifier) int {
	if b.Priority16() != o.Priority16() {
		if b.Priority16() < o.Priority16() {
			return -1
		}
		return 1
	}
	for i := range b.MACAddress {
		if b.MACAddress[i] != o.MACAddress[i] {
			if b.MACAddress[i] < o.MACAddress[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (b BridgeIdentifier) String() string {
	return fmt.Sprintf("%04x.%02x%02x%02x%02x%02x%02x", b.Priority16(),
		b.MACAddress[0], b.MACAddress[1], b.MACAddress[2],
		b.MACAddress[3], b.MACAddress[4], b.MACAddress[5])
}

// IsZero reports whether this identifier was never assigned a MAC.
func (b BridgeIdentifier) IsZero() bool {
	return b.Priority16() == 0 && b.MACAddress == [6]byte{}
}

// PortIdentifier is the 2-byte (priority<<12 | port number) port identifier.
type PortIdentifier struct {
	Priority uint8  // top 4 bits, a multiple of 16
	Number   uint16 // bottom 12 bits, 1-based kernel ifindex-derived port number
}

// Bytes renders the 2-byte wire form.
func (p PortIdentifier) Bytes() [2]byte {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], uint16(p.Priority)<<12|(p.Number&0x0FFF))
	return out
}

// PortIdentifierFromBytes parses the 2-byte wire form.
func PortIdentifierFromBytes(b []byte) PortIdentifier {
	v := binary.BigEndian.Uint16(b)
	return PortIdentifier{Priority: uint8(v >> 12), Number: v & 0x0FFF}
}

// Compare orders port identifiers the same way bridge identifiers are
// ordered: priority field first, then port number.
func (p PortIdentifier) Compare(o PortIdentifier) int {
	pv, ov := uint16(p.Priority)<<12|p.Number, uint16(o.Priority)<<12|o.Number
	switch {
	case pv < ov:
		return -1
	case pv > ov:
		return 1
	default:
		return 0
	}
}

func (p PortIdentifier) String() string {
	return fmt.Sprintf("%d.%d", p.Priority, p.Number)
}

// ConfigurationDigest is the 16-byte HMAC-MD5 digest over the vid-to-mstid
// table, computed with the fixed key from IEEE 802.1Q Table 13-1.
type ConfigurationDigest [16]byte

func (d ConfigurationDigest) String() string {
	return fmt.Sprintf("%x", [16]byte(d))
}
