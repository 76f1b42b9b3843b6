package transport

import (
	"context"
	"encoding/binary"
	"net"

	"github.com/smallnest/goframe"

	"github.com/nm-morais/go-frames/pkg/channel"
	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
	"github.com/nm-morais/go-frames/pkg/logs"
	"github.com/nm-morais/go-frames/pkg/pipeline"
)

const clientCaller = "client"

// Client is the dialing side of a connection. It decodes what it reads with
// its own channel and is not safe for concurrent use.
type Client struct {
	conn    net.Conn
	ch      *channel.Channel
	framing *frame.Config
	// raw payloads go out through this when the framing has a goframe equivalent
	fc goframe.FrameConn

	buf   []byte
	inbox []received
}

type received struct {
	msg   interface{}
	fault error
}

func Dial(ctx context.Context, addr string, conf channel.Config) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.KindClosed, clientCaller, err, "dialing %s", addr)
	}
	c, err := NewClient(conn, conf)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, conf channel.Config) (*Client, error) {
	ch, err := channel.New(conf, conn, logs.NewLogger(clientCaller))
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		ch:      ch,
		framing: conf.Framing,
		buf:     make([]byte, DefaultReadBufferSize),
	}
	if conf.Protocol == nil {
		c.fc = frameConn(*conf.Framing, conn)
	}

	p := ch.Pipeline()
	if err := p.AddInbound("inbox", pipeline.InboundFunc(func(_ *pipeline.Context, msg interface{}) (interface{}, error) {
		c.inbox = append(c.inbox, received{msg: msg})
		return nil, nil
	})); err != nil {
		return nil, err
	}
	if err := p.AddInbound("faults", pipeline.FaultFunc(func(_ *pipeline.Context, fault error) error {
		c.inbox = append(c.inbox, received{fault: fault})
		return nil
	})); err != nil {
		return nil, err
	}
	return c, nil
}

func frameConn(cfg frame.Config, conn net.Conn) goframe.FrameConn {
	switch cfg.Kind {
	case frame.KindFixedLength:
		return goframe.NewFixedLengthFrameConn(cfg.FixedLength.Size, conn)
	case frame.KindLengthField:
		l := cfg.LengthField
		if l.Offset != 0 {
			return nil
		}
		switch l.Length {
		case 1, 2, 4, 8:
		default:
			return nil
		}
		return goframe.NewLengthFieldBasedFrameConn(goframe.EncoderConfig{
			ByteOrder:                       binary.BigEndian,
			LengthFieldLength:               l.Length,
			LengthAdjustment:                -l.Adjustment,
			LengthIncludesLengthFieldLength: false,
		}, goframe.DecoderConfig{
			ByteOrder:           binary.BigEndian,
			LengthFieldOffset:   0,
			LengthFieldLength:   l.Length,
			LengthAdjustment:    l.Adjustment,
			InitialBytesToStrip: l.InitialBytesToStrip,
		}, conn)
	}
	return nil
}

// Channel is the client's decoding channel.
func (c *Client) Channel() *channel.Channel {
	return c.ch
}

// Send writes msg: a raw payload as []byte, or a message.Message when the
// client runs in protocol mode.
func (c *Client) Send(msg interface{}) error {
	if payload, ok := msg.([]byte); ok && c.fc != nil {
		if err := frame.Check(*c.framing, payload); err != nil {
			return err
		}
		if err := c.fc.WriteFrame(payload); err != nil {
			return errors.Wrap(errors.KindClosed, clientCaller, err, "writing frame of %d bytes", len(payload))
		}
		return nil
	}
	return c.ch.Write(msg)
}

// Receive blocks until the next inbound message has been decoded. A payload
// that could not be deserialized is returned as a *channel.DecodeError and
// the client stays usable, as it does after a temporary timeout error.
func (c *Client) Receive(ctx context.Context) (interface{}, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.Wrap(errors.KindClosed, clientCaller, err, "setting read deadline")
	}

	for {
		if len(c.inbox) > 0 {
			r := c.inbox[0]
			c.inbox = c.inbox[1:]
			return r.msg, r.fault
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if ferr := c.ch.Feed(c.buf[:n]); ferr != nil {
				return nil, ferr
			}
		}
		if err != nil && len(c.inbox) == 0 {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, errors.Timeout(clientCaller, err, "reading from %s", c.conn.RemoteAddr())
			}
			return nil, errors.Wrap(errors.KindClosed, clientCaller, err, "reading from %s", c.conn.RemoteAddr())
		}
	}
}

func (c *Client) Close() error {
	return c.ch.Close()
}
