package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T, maxRows int) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"), maxRows)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndQuery(t *testing.T) {
	l := openTestLog(t, 0)
	l.Record(EventTopologyChange, "br0", "eth0", 0, "tcWhile started")
	l.Record(EventRoleChange, "br0", "eth1", 7, "designated -> root")
	l.Record(EventRoleChange, "br1", "eth2", 0, "alternate -> designated")

	events, err := l.Query("br0", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// newest first
	assert.Equal(t, EventRoleChange, events[0].Kind)
	assert.Equal(t, uint16(7), events[0].MSTID)
	assert.Equal(t, EventTopologyChange, events[1].Kind)

	all, err := l.Query("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRingTrim(t *testing.T) {
	l := openTestLog(t, 5)
	for i := 0; i < 12; i++ {
		l.Record(EventStateChange, "br0", "eth0", 0, "forwarding")
	}
	events, err := l.Query("br0", 100)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}
