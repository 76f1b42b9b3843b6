// Package frame cuts a fragmented byte stream into complete frames.
//
// A Framer decides where one frame ends; an Accumulator buffers what the
// transport delivers and drains every complete frame through its Framer.
// Framers keep discard state for oversized frames, so each Framer instance
// belongs to exactly one Accumulator.
package frame

import (
	"github.com/nm-morais/go-frames/pkg/buffer"
	"github.com/nm-morais/go-frames/pkg/errors"
)

// Frame is one extracted unit. It owns its bytes.
type Frame struct {
	data      []byte
	sourceLen int
}

// NewFrame wraps data, taking ownership of it.
func NewFrame(data []byte, sourceLen int) *Frame {
	return &Frame{data: data, sourceLen: sourceLen}
}

// Bytes returns the frame contents. Callers must not modify them.
func (f *Frame) Bytes() []byte {
	return f.data
}

func (f *Frame) Len() int {
	return len(f.data)
}

// SourceLen is how many stream bytes the frame consumed, including stripped
// delimiters and header bytes.
func (f *Frame) SourceLen() int {
	return f.sourceLen
}

// Framer extracts at most one frame from the unread bytes of c.
//
// It returns (nil, nil) when more bytes are needed; the Accumulator then rolls
// the cursor back to its mark, so a Framer may read ahead freely. Bytes a
// Framer wants gone for good (an oversized frame) are committed with Mark
// before returning.
type Framer interface {
	Extract(c *buffer.Cursor) (*Frame, error)
}

// NewFramer builds the Framer for a validated config.
func NewFramer(cfg Config) (Framer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindFixedLength:
		return &FixedLengthFramer{size: cfg.FixedLength.Size}, nil
	case KindDelimiter:
		return newDelimiterFramer(*cfg.Delimiter), nil
	case KindLengthField:
		return newLengthFieldFramer(*cfg.LengthField), nil
	}
	return nil, errors.New(errors.KindInvalidConfig, caller, "unknown framing kind %d", cfg.Kind)
}

const caller = "frame"

// discard drops n bytes for good.
func discard(c *buffer.Cursor, n int) {
	_ = c.Skip(n)
	c.Mark()
}

func tooLarge(owner string, declared, available, limit int64) error {
	err := errors.New(errors.KindFrameTooLarge, owner, "frame length %d exceeds max %d", declared, limit)
	return errors.WithDetails(err, errors.Details{Offset: -1, Declared: declared, Available: available, Limit: limit})
}
