package model

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultTableDigest pins the digest of the default (all VIDs on the
// CIST) table to the well-known value every 802.1Q implementation derives
// from the standard's fixed HMAC-MD5 key.
func TestDefaultTableDigest(t *testing.T) {
	table := NewVIDToMSTIDTable()
	want, err := hex.DecodeString("ac36177f50283cd4b83821d8ab26de62")
	require.NoError(t, err)
	digest := table.Digest()
	assert.Equal(t, want, digest[:])
}

func TestDigestChangesWithMapping(t *testing.T) {
	table := NewVIDToMSTIDTable()
	base := table.Digest()
	table.Set(100, 7)
	assert.NotEqual(t, base, table.Digest())
	table.Set(100, CIST)
	assert.Equal(t, base, table.Digest())
}

func TestReservedVIDsStayOnCIST(t *testing.T) {
	table := NewVIDToMSTIDTable()
	table.Set(0, 5)
	table.Set(4095, 5)
	assert.Equal(t, CIST, table[0])
	assert.Equal(t, CIST, table[4095])
}

func TestRemapInstance(t *testing.T) {
	table := NewVIDToMSTIDTable()
	table.Set(10, 3)
	table.Set(11, 3)
	table.Set(12, 4)
	table.RemapInstance(3)
	assert.Equal(t, CIST, table[10])
	assert.Equal(t, CIST, table[11])
	assert.Equal(t, MSTID(4), table[12])
}

func TestMSTIDsInUseSorted(t *testing.T) {
	table := NewVIDToMSTIDTable()
	table.Set(5, 40)
	table.Set(6, 2)
	table.Set(7, 17)
	assert.Equal(t, []MSTID{2, 17, 40}, table.MSTIDsInUse())
}
