// Package buffer provides the growable byte cursor the framers read from.
//
// A Cursor keeps the bytes it was fed plus two positions: the reader index,
// where the next read starts, and a mark the reader index can be rolled back
// to. 0 <= mark <= reader <= len(buf) holds at all times.
package buffer

import "io"

const (
	defaultCapacity = 512
	// compaction is skipped while the consumed prefix is smaller than this
	compactThreshold = 4096
)

type Cursor struct {
	buf    []byte
	reader int
	mark   int
}

func NewCursor(capacity int) *Cursor {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Cursor{buf: make([]byte, 0, capacity)}
}

// Write appends a copy of p. It never fails.
func (c *Cursor) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	return len(p), nil
}

// Len is the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.reader
}

func (c *Cursor) Cap() int {
	return cap(c.buf)
}

func (c *Cursor) ReaderIndex() int {
	return c.reader
}

func (c *Cursor) MarkIndex() int {
	return c.mark
}

// Mark saves the reader index.
func (c *Cursor) Mark() {
	c.mark = c.reader
}

// Reset moves the reader index back to the last mark.
func (c *Cursor) Reset() {
	c.reader = c.mark
}

// Readable returns the unread bytes without consuming them. The slice aliases
// the cursor and is only valid until the next Write or Compact.
func (c *Cursor) Readable() []byte {
	return c.buf[c.reader:]
}

// Peek returns n unread bytes starting off bytes past the reader index, or
// false when not enough bytes are buffered. The slice aliases the cursor.
func (c *Cursor) Peek(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > c.Len() {
		return nil, false
	}
	start := c.reader + off
	return c.buf[start : start+n], true
}

// Skip advances the reader index by n.
func (c *Cursor) Skip(n int) error {
	if n < 0 || n > c.Len() {
		return io.ErrUnexpectedEOF
	}
	c.reader += n
	return nil
}

// Next consumes n bytes and returns them as a fresh copy owned by the caller.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, n)
	copy(out, c.buf[c.reader:c.reader+n])
	c.reader += n
	return out, nil
}

func (c *Cursor) ReadByte() (byte, error) {
	if c.Len() < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	b := c.buf[c.reader]
	c.reader++
	return b, nil
}

// Compact drops the bytes before the mark. When everything was read the
// buffer is rewound for free; otherwise the copy only happens once the dead
// prefix is both large and at least half the capacity.
func (c *Cursor) Compact() {
	if c.mark == 0 {
		return
	}
	if c.mark == len(c.buf) {
		c.buf = c.buf[:0]
		c.reader, c.mark = 0, 0
		return
	}
	if c.mark < compactThreshold || c.mark*2 < cap(c.buf) {
		return
	}
	n := copy(c.buf, c.buf[c.mark:])
	c.buf = c.buf[:n]
	c.reader -= c.mark
	c.mark = 0
}

// Truncate discards every buffered byte.
func (c *Cursor) Truncate() {
	c.buf = c.buf[:0]
	c.reader, c.mark = 0, 0
}
