package frame

import (
	log "github.com/sirupsen/logrus"

	"github.com/nm-morais/go-frames/pkg/buffer"
	"github.com/nm-morais/go-frames/pkg/errors"
)

// Accumulator holds the unconsumed tail of a connection's byte stream.
// It is not safe for concurrent use.
type Accumulator struct {
	cursor *buffer.Cursor
	framer Framer
	// stream offset of cursor index 0
	base   int64
	logger log.FieldLogger
}

func NewAccumulator(framer Framer, logger log.FieldLogger) *Accumulator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Accumulator{
		cursor: buffer.NewCursor(0),
		framer: framer,
		logger: logger,
	}
}

// Feed appends p. The bytes are copied.
func (a *Accumulator) Feed(p []byte) {
	_, _ = a.cursor.Write(p)
}

// Drain extracts every complete frame in arrival order. On error the frames
// extracted before it are still returned.
func (a *Accumulator) Drain() ([]*Frame, error) {
	var frames []*Frame
	for {
		a.cursor.Mark()
		start := a.base + int64(a.cursor.ReaderIndex())

		f, err := a.framer.Extract(a.cursor)
		if err != nil {
			a.cursor.Reset()
			a.compact()
			err = a.annotate(err, start)
			a.logger.Warnf("Framing failed at stream offset %d: %s", start, err)
			return frames, err
		}
		if f == nil {
			a.cursor.Reset()
			a.compact()
			return frames, nil
		}
		frames = append(frames, f)
	}
}

// Buffered is the number of bytes waiting for a complete frame.
func (a *Accumulator) Buffered() int {
	return a.cursor.Len()
}

// Reset drops any partial frame.
func (a *Accumulator) Reset() {
	a.base += int64(a.cursor.ReaderIndex() + a.cursor.Len())
	a.cursor.Truncate()
}

func (a *Accumulator) compact() {
	mark := a.cursor.MarkIndex()
	a.cursor.Compact()
	if a.cursor.MarkIndex() == 0 {
		a.base += int64(mark)
	}
}

func (a *Accumulator) annotate(err error, offset int64) error {
	e, ok := err.(errors.Error)
	if !ok {
		return err
	}
	d := e.Details()
	d.Offset = offset
	return errors.WithDetails(e, d)
}
