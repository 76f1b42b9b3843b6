package frame

import "github.com/nm-morais/go-frames/pkg/buffer"

// FixedLengthFramer emits frames of exactly size bytes.
type FixedLengthFramer struct {
	size int
}

func (f *FixedLengthFramer) Extract(c *buffer.Cursor) (*Frame, error) {
	if c.Len() < f.size {
		return nil, nil
	}
	data, err := c.Next(f.size)
	if err != nil {
		return nil, nil
	}
	return NewFrame(data, f.size), nil
}
