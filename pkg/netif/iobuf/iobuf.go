// Package iobuf is a bounded write buffer for control-socket replies: a
// fixed backing array allocated once, appended to while a reply is built,
// and drained to a file descriptor with a write loop that retries short
// writes until the buffer is empty or a hard error occurs.
package iobuf

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrFull is returned when an Append would exceed the buffer's fixed
	// capacity.
	ErrFull = errors.New("iobuf: buffer full")
)

// Buffer is a fixed-capacity byte buffer. The backing array is allocated at
// New and never reallocated.
type Buffer struct {
	data []byte
	size int // bytes appended and not yet fully flushed
	pos  int // bytes of data[0:size] already written out
}

// New allocates a buffer of the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of unflushed bytes.
func (b *Buffer) Len() int { return b.size - b.pos }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Reset discards all buffered data.
func (b *Buffer) Reset() {
	b.size = 0
	b.pos = 0
}

// Append copies p into the buffer. It appends all of p or none of it.
func (b *Buffer) Append(p []byte) error {
	if b.size+len(p) > len(b.data) {
		return ErrFull
	}
	copy(b.data[b.size:], p)
	b.size += len(p)
	return nil
}

// Bytes returns the unflushed contents. The slice aliases the backing array
// and is invalidated by the next Append/Reset/WriteToFD.
func (b *Buffer) Bytes() []byte { return b.data[b.pos:b.size] }

// WriteToFD drains the buffer to fd, looping until everything buffered has
// been written or a non-retryable error occurs. A short write never leaves
// stale bytes behind: pos tracks exactly how much the kernel accepted, and
// EINTR/EAGAIN retry from there.
func (b *Buffer) WriteToFD(fd int) error {
	for b.pos < b.size {
		n, err := unix.Write(fd, b.data[b.pos:b.size])
		if n > 0 {
			b.pos += n
		}
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return err
		}
	}
	b.Reset()
	return nil
}
