package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm-morais/go-frames/pkg/errors"
)

type recorder struct {
	events []string
}

func (r *recorder) inbound(name string) InboundFunc {
	return func(ctx *Context, msg interface{}) (interface{}, error) {
		r.events = append(r.events, fmt.Sprintf("%s:%v", name, msg))
		return msg, nil
	}
}

func (r *recorder) faulty(name string) InboundFunc {
	return func(ctx *Context, msg interface{}) (interface{}, error) {
		r.events = append(r.events, fmt.Sprintf("%s:%v", name, msg))
		return nil, fmt.Errorf("%s failed", name)
	}
}

func (r *recorder) handler(name string, forward bool) FaultFunc {
	return func(ctx *Context, fault error) error {
		r.events = append(r.events, fmt.Sprintf("%s!%s", name, fault))
		if forward {
			return fault
		}
		return nil
	}
}

func (r *recorder) outbound(name string) OutboundFunc {
	return func(ctx *Context, msg interface{}) (interface{}, error) {
		r.events = append(r.events, fmt.Sprintf("%s>%v", name, msg))
		return msg, nil
	}
}

func TestInboundRunsInRegistrationOrder(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("A", r.inbound("A")))
	require.NoError(t, d.AddInbound("B", r.inbound("B")))
	require.NoError(t, d.AddInbound("C", r.inbound("C")))

	d.FireRead("m")
	assert.Equal(t, []string{"A:m", "B:m", "C:m"}, r.events)
	assert.Equal(t, []string{"A", "B", "C"}, d.InboundNames())
}

func TestFaultSkipsLaterStagesAndReachesHandlerAfter(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("before", r.handler("before", false)))
	require.NoError(t, d.AddInbound("A", r.inbound("A")))
	require.NoError(t, d.AddInbound("B", r.faulty("B")))
	require.NoError(t, d.AddInbound("C", r.inbound("C")))
	require.NoError(t, d.AddInbound("handler", r.handler("handler", false)))

	d.FireRead("m")
	assert.Equal(t, []string{"A:m", "B:m", "handler!B failed"}, r.events)
	assert.Equal(t, 0, d.UnhandledFaults())
}

func TestFaultWithoutHandlerIsDropped(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("A", r.faulty("A")))
	require.NoError(t, d.AddInbound("B", r.inbound("B")))

	assert.NotPanics(t, func() { d.FireRead("m") })
	assert.Equal(t, []string{"A:m"}, r.events)
	assert.Equal(t, 1, d.UnhandledFaults())

	// the dispatcher keeps working
	r.events = nil
	d.FireRead("n")
	assert.Equal(t, []string{"A:n"}, r.events)
}

func TestFaultHandlersCanForward(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("A", r.faulty("A")))
	require.NoError(t, d.AddInbound("h1", r.handler("h1", true)))
	require.NoError(t, d.AddInbound("h2", r.handler("h2", true)))

	d.FireRead("m")
	assert.Equal(t, []string{"A:m", "h1!A failed", "h2!A failed"}, r.events)
	assert.Equal(t, 1, d.UnhandledFaults())
}

type selfHandling struct {
	faults []error
}

func (s *selfHandling) Read(*Context, interface{}) (interface{}, error) {
	return nil, fmt.Errorf("own fault")
}

func (s *selfHandling) Fault(_ *Context, fault error) error {
	s.faults = append(s.faults, fault)
	return nil
}

func TestFaultingStageThatHandlesFaultsSeesItsOwnFault(t *testing.T) {
	s := &selfHandling{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("self", s))

	d.FireRead("m")
	require.Len(t, s.faults, 1)
	assert.EqualError(t, s.faults[0], "own fault")
}

func TestConsumeStopsAndMutatePasses(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("upper", InboundFunc(func(_ *Context, msg interface{}) (interface{}, error) {
		return strings.ToUpper(msg.(string)), nil
	})))
	require.NoError(t, d.AddInbound("filter", InboundFunc(func(_ *Context, msg interface{}) (interface{}, error) {
		if msg.(string) == "DROP" {
			return nil, nil
		}
		return msg, nil
	})))
	require.NoError(t, d.AddInbound("last", r.inbound("last")))

	d.FireRead("keep")
	d.FireRead("drop")
	assert.Equal(t, []string{"last:KEEP"}, r.events)
}

func TestOutboundRunsInReverseOrder(t *testing.T) {
	r := &recorder{}
	var sunk []interface{}
	d := NewDispatcher(func(msg interface{}) error {
		sunk = append(sunk, msg)
		return nil
	}, nil)
	require.NoError(t, d.AddOutbound("A", r.outbound("A")))
	require.NoError(t, d.AddOutbound("B", r.outbound("B")))
	require.NoError(t, d.AddOutbound("C", r.outbound("C")))

	require.NoError(t, d.Write("m"))
	assert.Equal(t, []string{"C>m", "B>m", "A>m"}, r.events)
	assert.Equal(t, []interface{}{"m"}, sunk)
	assert.Equal(t, []string{"A", "B", "C"}, d.OutboundNames())
}

func TestOutboundFaultReturnsToCaller(t *testing.T) {
	reached := false
	d := NewDispatcher(func(interface{}) error {
		reached = true
		return nil
	}, nil)
	require.NoError(t, d.AddOutbound("A", OutboundFunc(func(_ *Context, msg interface{}) (interface{}, error) {
		return msg, nil
	})))
	require.NoError(t, d.AddOutbound("B", OutboundFunc(func(*Context, interface{}) (interface{}, error) {
		return nil, fmt.Errorf("encode failed")
	})))

	assert.EqualError(t, d.Write("m"), "encode failed")
	assert.False(t, reached)
}

func TestInboundStageCanWriteOutbound(t *testing.T) {
	var sunk []interface{}
	d := NewDispatcher(func(msg interface{}) error {
		sunk = append(sunk, msg)
		return nil
	}, nil)
	require.NoError(t, d.AddInbound("echo", InboundFunc(func(ctx *Context, msg interface{}) (interface{}, error) {
		return nil, ctx.Write(msg)
	})))

	d.FireRead("ping")
	assert.Equal(t, []interface{}{"ping"}, sunk)
}

func TestPanickingStageBecomesFault(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("boom", InboundFunc(func(*Context, interface{}) (interface{}, error) {
		panic("kaboom")
	})))
	require.NoError(t, d.AddInbound("handler", r.handler("handler", false)))

	assert.NotPanics(t, func() { d.FireRead("m") })
	require.Len(t, r.events, 1)
	assert.Contains(t, r.events[0], "kaboom")
}

func TestFireFaultStartsAtHead(t *testing.T) {
	r := &recorder{}
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("A", r.inbound("A")))
	require.NoError(t, d.AddInbound("handler", r.handler("handler", false)))

	d.FireFault(fmt.Errorf("decode failed"))
	assert.Equal(t, []string{"handler!decode failed"}, r.events)
}

func TestStagesAreFixedAfterFirstEvent(t *testing.T) {
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.AddInbound("A", FaultFunc(func(*Context, error) error { return nil })))
	assert.True(t, errors.Is(d.AddInbound("A", InboundFunc(nil)), errors.ErrInvalidConfig))

	d.FireRead("m")
	err := d.AddOutbound("late", OutboundFunc(nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
	assert.Equal(t, []string{"A"}, d.InboundNames())
}

func TestSameNameInBothDirections(t *testing.T) {
	r := &recorder{}
	var sent []interface{}
	d := NewDispatcher(func(msg interface{}) error {
		sent = append(sent, msg)
		return nil
	}, nil)
	require.NoError(t, d.AddInbound("logging", r.inbound("in")))
	require.NoError(t, d.AddOutbound("logging", r.outbound("out")))
	assert.True(t, errors.Is(d.AddOutbound("logging", r.outbound("again")), errors.ErrInvalidConfig))

	d.FireRead("m")
	require.NoError(t, d.Write("r"))
	assert.Equal(t, []string{"in:m", "out>r"}, r.events)
	assert.Equal(t, []interface{}{"r"}, sent)
	assert.Equal(t, []string{"logging"}, d.InboundNames())
	assert.Equal(t, []string{"logging"}, d.OutboundNames())
}

func TestWriteWithoutSink(t *testing.T) {
	d := NewDispatcher(nil, nil)
	assert.True(t, errors.Is(d.Write("m"), errors.ErrClosed))
}
