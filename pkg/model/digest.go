package model

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // mandated by IEEE 802.1Q 13.7, not a security boundary
	"encoding/binary"
)

// hmacKey is the fixed key from IEEE 802.1Q Table 13-1.
var hmacKey = [16]byte{
	0x13, 0xAC, 0x06, 0xA6, 0x2E, 0x47, 0xFD, 0x51,
	0xF9, 0x5D, 0x2B, 0xA2, 0x43, 0xCD, 0x03, 0x46,
}

// VIDToMSTIDTable is the full 4096-entry VLAN-to-instance map. Entries 0 and
// 4095 are reserved and must always map to the CIST; this is enforced by
// NewVIDToMSTIDTable / Set, never bypassed.
type VIDToMSTIDTable [4096]MSTID

// NewVIDToMSTIDTable returns a table with every VID mapped to the CIST.
func NewVIDToMSTIDTable() VIDToMSTIDTable {
	var t VIDToMSTIDTable
	return t // zero value already maps everything to CIST (0)
}

// Set assigns vid to mstid, except for the two reserved entries which are
// silently forced back to the CIST: that keeps the table's invariant true
// even if a caller forgets to special-case them.
func (t *VIDToMSTIDTable) Set(vid VID, mstid MSTID) {
	if vid == 0 || vid == 4095 {
		t[vid] = CIST
		return
	}
	t[vid] = mstid
}

// Digest computes the HMAC-MD5 configuration digest over the table, encoded
// as 4096 big-endian 16-bit MSTIDs, per IEEE 802.1Q 13.7.
func (t VIDToMSTIDTable) Digest() ConfigurationDigest {
	var buf [4096 * 2]byte
	for i, id := range t {
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], uint16(id))
	}
	mac := hmac.New(md5.New, hmacKey[:])
	mac.Write(buf[:])
	var out ConfigurationDigest
	copy(out[:], mac.Sum(nil))
	return out
}

// MSTIDsInUse returns the distinct non-CIST MSTIDs referenced by the table,
// ascending.
func (t VIDToMSTIDTable) MSTIDsInUse() []MSTID {
	seen := make(map[MSTID]bool)
	var out []MSTID
	for _, id := range t {
		if id == CIST || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	// simple insertion sort; at most 4094 distinct values, typically a handful
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// RemapInstance reassigns every VID currently pointing at from to the CIST.
// Used when an MSTI is deleted.
func (t *VIDToMSTIDTable) RemapInstance(from MSTID) {
	for vid, id := range t {
		if id == from {
			t[vid] = CIST
		}
	}
}
