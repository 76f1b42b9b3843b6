package frame

import (
	"math"

	"github.com/nm-morais/go-frames/pkg/buffer"
	"github.com/nm-morais/go-frames/pkg/errors"
)

const lengthFieldCaller = "lengthFieldFramer"

// LengthFieldFramer reads a big-endian length field and derives the frame
// length as offset + fieldLength + adjustment + fieldValue. The returned frame
// starts InitialBytesToStrip bytes into the frame.
type LengthFieldFramer struct {
	cfg       LengthFieldConfig
	endOffset int

	discarding         bool
	tooLongFrameLength int64
	bytesToDiscard     int64
}

func newLengthFieldFramer(cfg LengthFieldConfig) *LengthFieldFramer {
	return &LengthFieldFramer{cfg: cfg, endOffset: cfg.Offset + cfg.Length}
}

func (f *LengthFieldFramer) Extract(c *buffer.Cursor) (*Frame, error) {
	if f.discarding {
		if err := f.discardTooLongFrame(c); err != nil {
			return nil, err
		}
		if f.discarding {
			return nil, nil
		}
	}

	field, ok := c.Peek(f.cfg.Offset, f.cfg.Length)
	if !ok {
		return nil, nil
	}
	frameLength := f.frameLength(readUint(field))
	maxLength := int64(f.cfg.MaxFrameLength)

	if frameLength < int64(f.endOffset) {
		// negative content length, the field cannot be trusted
		discard(c, f.endOffset)
		return nil, tooLarge(lengthFieldCaller, frameLength, int64(c.Len()), maxLength)
	}
	if frameLength > maxLength {
		return nil, f.exceededFrameLength(c, frameLength)
	}
	if int64(c.Len()) < frameLength {
		return nil, nil
	}

	n := int(frameLength)
	if f.cfg.InitialBytesToStrip > n {
		discard(c, n)
		err := errors.New(errors.KindCorruptedFrame, lengthFieldCaller,
			"frame length %d is less than initial bytes to strip %d", n, f.cfg.InitialBytesToStrip)
		return nil, errors.WithDetails(err, errors.Details{Offset: -1, Declared: frameLength, Available: int64(n), Limit: maxLength})
	}
	_ = c.Skip(f.cfg.InitialBytesToStrip)
	data, _ := c.Next(n - f.cfg.InitialBytesToStrip)
	return NewFrame(data, n), nil
}

func (f *LengthFieldFramer) frameLength(value uint64) int64 {
	if value > math.MaxInt64/2 {
		return math.MaxInt64
	}
	return int64(value) + int64(f.cfg.Adjustment) + int64(f.endOffset)
}

func (f *LengthFieldFramer) exceededFrameLength(c *buffer.Cursor, frameLength int64) error {
	available := int64(c.Len())
	f.tooLongFrameLength = frameLength
	if frameLength <= available {
		// the whole oversized frame is already here: drop it and report now
		discard(c, int(frameLength))
		f.tooLongFrameLength = 0
		return tooLarge(lengthFieldCaller, frameLength, available, int64(f.cfg.MaxFrameLength))
	}
	f.discarding = true
	f.bytesToDiscard = frameLength - available
	discard(c, c.Len())
	if f.cfg.FailFast {
		return tooLarge(lengthFieldCaller, frameLength, available, int64(f.cfg.MaxFrameLength))
	}
	return nil
}

func (f *LengthFieldFramer) discardTooLongFrame(c *buffer.Cursor) error {
	n := f.bytesToDiscard
	if avail := int64(c.Len()); avail < n {
		n = avail
	}
	discard(c, int(n))
	f.bytesToDiscard -= n
	if f.bytesToDiscard > 0 {
		return nil
	}
	tooLong := f.tooLongFrameLength
	f.discarding = false
	f.tooLongFrameLength = 0
	if !f.cfg.FailFast {
		return tooLarge(lengthFieldCaller, tooLong, tooLong, int64(f.cfg.MaxFrameLength))
	}
	return nil
}

func readUint(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
