package frame

import (
	"bytes"

	"github.com/nm-morais/go-frames/pkg/buffer"
)

const delimiterCaller = "delimiterFramer"

// DelimiterFramer splits on the earliest delimiter occurrence. When several
// delimiters match at the same position the shortest one wins.
type DelimiterFramer struct {
	cfg DelimiterConfig

	discarding         bool
	tooLongFrameLength int64
}

func newDelimiterFramer(cfg DelimiterConfig) *DelimiterFramer {
	delims := make([][]byte, len(cfg.Delimiters))
	for i, d := range cfg.Delimiters {
		delims[i] = append([]byte(nil), d...)
	}
	cfg.Delimiters = delims
	return &DelimiterFramer{cfg: cfg}
}

func (f *DelimiterFramer) Extract(c *buffer.Cursor) (*Frame, error) {
	for {
		buf := c.Readable()
		idx, delimLen := f.indexOf(buf)

		if idx < 0 {
			if f.discarding {
				f.tooLongFrameLength += int64(len(buf))
				discard(c, len(buf))
				return nil, nil
			}
			if len(buf) > f.cfg.MaxLength {
				f.tooLongFrameLength = int64(len(buf))
				f.discarding = true
				discard(c, len(buf))
				if f.cfg.FailFast {
					return nil, tooLarge(delimiterCaller, f.tooLongFrameLength, f.tooLongFrameLength, int64(f.cfg.MaxLength))
				}
			}
			return nil, nil
		}

		if f.discarding {
			tooLong := f.tooLongFrameLength + int64(idx)
			f.discarding = false
			f.tooLongFrameLength = 0
			discard(c, idx+delimLen)
			if !f.cfg.FailFast {
				return nil, tooLarge(delimiterCaller, tooLong, tooLong, int64(f.cfg.MaxLength))
			}
			// already reported when the discard started
			continue
		}

		if idx > f.cfg.MaxLength {
			discard(c, idx+delimLen)
			return nil, tooLarge(delimiterCaller, int64(idx), int64(len(buf)), int64(f.cfg.MaxLength))
		}

		var data []byte
		if f.cfg.Strip {
			data, _ = c.Next(idx)
			_ = c.Skip(delimLen)
		} else {
			data, _ = c.Next(idx + delimLen)
		}
		return NewFrame(data, idx+delimLen), nil
	}
}

// indexOf returns the earliest delimiter position in buf and the length of the
// delimiter found there, or -1.
func (f *DelimiterFramer) indexOf(buf []byte) (int, int) {
	best, bestLen := -1, 0
	for _, delim := range f.cfg.Delimiters {
		i := bytes.Index(buf, delim)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(delim) < bestLen) {
			best, bestLen = i, len(delim)
		}
	}
	return best, bestLen
}
