// Package buffer implements methods for efficiently writing and reading
// values to and from io.Writer and io.Reader that also expose their internal
// buffers.
package buffer

import (
	"fmt"
	"io"
)

// Writer is an interface for writers that expose their internal buffers.
// This interface is notably implemented by the bufio.Writer type
// (see https://pkg.go.dev/bufio#Writer) and by the Buffer type.
type Writer interface {
	io.Writer
	Flush() (err error)
	AvailableBuffer() []byte
	Available() int
}

// Reader is an interface for readers that expose their internal buffers.
// This interface is notably implemented by the bufio.Reader type
// (see https://pkg.go.dev/bufio#Reader) and by the Buffer type.
type Reader interface {
	io.Reader
	Size() int
	Peek(n int) ([]byte, error)
	Discard(n int) (discarded int, err error)
}

// Buffer is a simple []byte-based buffer that complies to the Writer and
// Reader interfaces. The backing slice has a fixed size: writes beyond
// capacity return an error instead of growing it.
type Buffer struct {
	buf []byte
	n   int // write offset
	off int // read offset
}

// NewBuffer creates a new Buffer with buff as backing slice. Read and write
// offsets start at buff[0], so writing overwrites the content of buff.
func NewBuffer(buff []byte) *Buffer {
	return &Buffer{buf: buff[:cap(buff)]}
}

// NewBufferSize creates a new Buffer with a zeroed backing slice of the
// given size.
func NewBufferSize(size int) *Buffer {
	return &Buffer{buf: make([]byte, size)}
}

// Write writes p on the buffer, after the previously written data.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if len(p) > len(b.buf)-b.n {
		return 0, fmt.Errorf("cannot Write: buffer is full")
	}
	n = copy(b.buf[b.n:], p)
	b.n += n
	return
}

// Flush is a no-op on a Buffer; it exists to satisfy the Writer interface.
func (b *Buffer) Flush() (err error) {
	return nil
}

// AvailableBuffer returns the unwritten tail of the backing slice.
func (b *Buffer) AvailableBuffer() []byte {
	return b.buf[b.n:][:0]
}

// Available returns the number of unwritten bytes remaining.
func (b *Buffer) Available() int {
	return len(b.buf) - b.n
}

// Bytes returns the written prefix of the backing slice.
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Reset resets the read and write offsets.
func (b *Buffer) Reset() {
	b.n = 0
	b.off = 0
}

// Read reads up to len(p) bytes from the unread portion of the buffer.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if b.off >= len(b.buf) {
		return 0, io.EOF
	}
	n = copy(p, b.buf[b.off:])
	b.off += n
	return
}

// Size returns the size of the backing slice.
func (b *Buffer) Size() int {
	return len(b.buf)
}

// Peek returns the next n bytes without advancing the reader.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if len(b.buf)-b.off < n {
		return b.buf[b.off:], io.EOF
	}
	return b.buf[b.off : b.off+n], nil
}

// Discard skips the next n bytes.
func (b *Buffer) Discard(n int) (discarded int, err error) {
	if len(b.buf)-b.off < n {
		discarded = len(b.buf) - b.off
		b.off = len(b.buf)
		return discarded, io.EOF
	}
	b.off += n
	return n, nil
}
