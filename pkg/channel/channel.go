// Package channel ties the decoding stack of one connection together: bytes
// fed in are framed, optionally parsed as protocol frames and deserialized,
// then dispatched through the connection's pipeline.
package channel

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
	"github.com/nm-morais/go-frames/pkg/logs"
	"github.com/nm-morais/go-frames/pkg/message"
	"github.com/nm-morais/go-frames/pkg/pipeline"
	"github.com/nm-morais/go-frames/pkg/protocol"
	"github.com/nm-morais/go-frames/pkg/serializationManager"
)

const caller = "channel"

// Config selects how a channel decodes its stream.
//
// With only Framing set the channel runs in raw mode and inbound stages
// receive each frame's bytes. With Protocol set the channel runs in protocol
// mode: frames are parsed as header frames, their payloads deserialized with
// Registry, and inbound stages receive message.Message values. In protocol
// mode Framing may be left nil, in which case frames are cut from the header's
// length field.
type Config struct {
	Framing  *frame.Config
	Protocol *protocol.Codec
	Registry serializationManager.SerializationManager
}

func (c Config) Validate() error {
	if c.Framing == nil && c.Protocol == nil {
		return errors.New(errors.KindInvalidConfig, caller, "either framing or protocol must be configured")
	}
	if c.Framing != nil {
		if err := c.Framing.Validate(); err != nil {
			return err
		}
	}
	if c.Protocol != nil && c.Registry == nil {
		return errors.New(errors.KindInvalidConfig, caller, "protocol mode requires a serialization registry")
	}
	return nil
}

// DecodeError is raised as a pipeline fault when a protocol frame was valid
// but its payload could not be deserialized. The connection stays open.
type DecodeError struct {
	Header protocol.Header
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s payload (algorithm %d): %s", typeName(e.Header.MessageType), e.Header.Algorithm, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func typeName(t byte) string {
	switch t {
	case message.TypeRequest:
		return "request"
	case message.TypeResponse:
		return "response"
	case message.TypeHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("type %d", t)
}

// Channel is the decoding state of one connection. Feed is meant to be called
// from a single reader goroutine; Write may be called concurrently with it.
type Channel struct {
	id       string
	conf     Config
	acc      *frame.Accumulator
	pipeline *pipeline.Dispatcher
	out      io.Writer

	// serializes pipeline events
	mu sync.Mutex
	// serializes writes to out
	outMu  sync.Mutex
	closed int32

	logger *log.Entry
}

// New builds a channel writing its outbound bytes to out. A nil logger gets
// the package logger.
func New(conf Config, out io.Writer, logger *log.Logger) (*Channel, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logs.NewLogger(caller)
	}

	var framer frame.Framer
	if conf.Framing != nil {
		f, err := frame.NewFramer(*conf.Framing)
		if err != nil {
			return nil, err
		}
		framer = f
	} else {
		framer = conf.Protocol.Framer()
	}

	c := &Channel{
		id:   uuid.NewString(),
		conf: conf,
		out:  out,
	}
	c.logger = logger.WithField("channel", c.id)
	c.acc = frame.NewAccumulator(framer, c.logger)
	c.pipeline = pipeline.NewDispatcher(c.encode, c.logger)
	return c, nil
}

func (c *Channel) ID() string {
	return c.id
}

// Pipeline exposes the dispatcher so stages can be registered before the
// first byte arrives.
func (c *Channel) Pipeline() *pipeline.Dispatcher {
	return c.pipeline
}

// Buffered is the number of bytes waiting for a complete frame.
func (c *Channel) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc.Buffered()
}

// Feed hands the channel the next bytes read from the transport. Every
// complete frame is dispatched before Feed returns. A fatal decoding error
// closes the channel and is returned; frames decoded before it have already
// been dispatched.
func (c *Channel) Feed(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Closed() {
		return errors.New(errors.KindClosed, caller, "feed on closed channel %s", c.id)
	}
	c.acc.Feed(p)
	frames, drainErr := c.acc.Drain()
	for i, f := range frames {
		if c.Closed() {
			c.logger.Warnf("Channel closed by a stage, dropping %d decoded frames", len(frames)-i)
			return nil
		}
		if err := c.dispatch(f); err != nil {
			c.fail(err)
			return err
		}
	}
	if drainErr != nil {
		c.fail(drainErr)
		return drainErr
	}
	return nil
}

func (c *Channel) dispatch(f *frame.Frame) error {
	if c.conf.Protocol == nil {
		c.pipeline.FireRead(f.Bytes())
		return nil
	}

	h, payload, err := c.conf.Protocol.Parse(f.Bytes())
	if err != nil {
		return err
	}
	body, err := c.conf.Registry.Deserialize(h.Algorithm, payload)
	if err != nil {
		if errors.IsFatal(err) {
			return err
		}
		c.logger.Warnf("Could not decode payload with algorithm %d: %s", h.Algorithm, err)
		c.pipeline.FireFault(&DecodeError{Header: h, Err: err})
		return nil
	}
	c.pipeline.FireRead(message.New(h, body))
	return nil
}

// Write sends msg through the outbound stages and onto the transport. The
// head of the chain accepts message.Message values in protocol mode and raw
// payloads as []byte in either mode. Inbound stages must write through their
// pipeline.Context instead.
func (c *Channel) Write(msg interface{}) error {
	if c.Closed() {
		return errors.New(errors.KindClosed, caller, "write on closed channel %s", c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline.Write(msg)
}

func (c *Channel) encode(msg interface{}) error {
	if c.Closed() {
		return errors.New(errors.KindClosed, caller, "write on closed channel %s", c.id)
	}
	wire, err := c.toWire(msg)
	if err != nil {
		return err
	}

	c.outMu.Lock()
	_, err = c.out.Write(wire)
	c.outMu.Unlock()
	if err != nil {
		wrapped := errors.Wrap(errors.KindClosed, caller, err, "writing %d bytes", len(wire))
		c.fail(wrapped)
		return wrapped
	}
	return nil
}

func (c *Channel) toWire(msg interface{}) ([]byte, error) {
	switch m := msg.(type) {
	case message.Message:
		if c.conf.Protocol == nil {
			return nil, errors.New(errors.KindInvalidConfig, caller, "cannot write %s on a raw channel", m)
		}
		payload, err := c.conf.Registry.Serialize(m.Algorithm(), m.Body())
		if err != nil {
			return nil, err
		}
		return c.conf.Protocol.Serialize(m.Header(), payload)
	case *message.Message:
		return c.toWire(*m)
	case []byte:
		if c.conf.Protocol != nil {
			// already a header frame
			return m, nil
		}
		return frame.Encode(*c.conf.Framing, m)
	}
	return nil, errors.New(errors.KindCodec, caller, "no encoding for outbound %T", msg)
}

func (c *Channel) fail(err error) {
	var e errors.Error
	if errors.As(err, &e) {
		e.Log(c.logger.WithField("closing", true))
	} else {
		c.logger.Errorf("Closing channel: %s", err)
	}
	_ = c.Close()
}

// Close marks the channel closed and closes the writer if it is an io.Closer.
func (c *Channel) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if closer, ok := c.out.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return errors.Wrap(errors.KindClosed, caller, err, "closing channel %s", c.id)
		}
	}
	return nil
}

func (c *Channel) Closed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
