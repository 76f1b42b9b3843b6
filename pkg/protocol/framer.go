package protocol

import (
	"encoding/binary"

	"github.com/nm-morais/go-frames/pkg/buffer"
	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
)

const framerCaller = "protocolFramer"

type headerFramer struct {
	codec *Codec
}

// Framer cuts header+payload frames. It rejects a bad magic or an oversized
// payload length as soon as the header is buffered, before any payload bytes
// are waited for.
func (c *Codec) Framer() frame.Framer {
	return &headerFramer{codec: c}
}

func (f *headerFramer) Extract(c *buffer.Cursor) (*frame.Frame, error) {
	if c.Len() < HeaderLength {
		return nil, nil
	}
	// reads below advance the cursor; the accumulator rolls back to its mark
	// when the payload is still incomplete
	hdr, _ := c.Next(HeaderLength)
	if magic := binary.BigEndian.Uint16(hdr[0:2]); magic != Magic {
		err := errors.New(errors.KindBadMagic, framerCaller, "got 0x%04X, expected 0x%04X", magic, Magic)
		return nil, errors.WithDetails(err, errors.Details{Offset: -1, Declared: -1, Available: int64(c.Len() + HeaderLength), Limit: -1})
	}
	payloadLength := binary.BigEndian.Uint32(hdr[10:14])
	if payloadLength > f.codec.maxPayloadLength {
		err := errors.New(errors.KindPayloadTooLarge, framerCaller, "declared payload length %d exceeds max %d", payloadLength, f.codec.maxPayloadLength)
		return nil, errors.WithDetails(err, errors.Details{Offset: -1, Declared: int64(payloadLength), Available: int64(c.Len()), Limit: int64(f.codec.maxPayloadLength)})
	}
	if uint64(c.Len()) < uint64(payloadLength) {
		return nil, nil
	}
	payload, _ := c.Next(int(payloadLength))
	return frame.NewFrame(append(hdr, payload...), HeaderLength+int(payloadLength)), nil
}
