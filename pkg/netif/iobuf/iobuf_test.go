package iobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAppendBounded(t *testing.T) {
	b := New(8)
	require.NoError(t, b.Append([]byte("1234")))
	require.NoError(t, b.Append([]byte("5678")))
	assert.Equal(t, 8, b.Len())

	// all-or-nothing: the failed append leaves the buffer untouched
	require.ErrorIs(t, b.Append([]byte("x")), ErrFull)
	assert.Equal(t, []byte("12345678"), b.Bytes())
}

func TestWriteToFDDrainsCompletely(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	b := New(64)
	require.NoError(t, b.Append([]byte("hello control socket")))
	require.NoError(t, b.WriteToFD(fds[1]))
	assert.Equal(t, 0, b.Len())

	out := make([]byte, 64)
	n, err := unix.Read(fds[0], out)
	require.NoError(t, err)
	assert.Equal(t, "hello control socket", string(out[:n]))
}

func TestResetReclaimsCapacity(t *testing.T) {
	b := New(4)
	require.NoError(t, b.Append([]byte("abcd")))
	b.Reset()
	require.NoError(t, b.Append([]byte("efgh")))
	assert.Equal(t, []byte("efgh"), b.Bytes())
}
