package pipeline

import (
	log "github.com/sirupsen/logrus"
)

// InboundStage handles a message travelling from the transport towards the
// application. Returning the message (or a replacement) passes it to the next
// stage, returning nil consumes it, returning an error raises a fault.
type InboundStage interface {
	Read(ctx *Context, msg interface{}) (interface{}, error)
}

// FaultHandler marks an inbound stage as able to handle faults. Returning nil
// handles the fault; returning an error forwards it to the next fault handler.
type FaultHandler interface {
	Fault(ctx *Context, fault error) error
}

// OutboundStage handles a message travelling towards the transport, with the
// same return contract as InboundStage.
type OutboundStage interface {
	Write(ctx *Context, msg interface{}) (interface{}, error)
}

type InboundFunc func(ctx *Context, msg interface{}) (interface{}, error)

func (f InboundFunc) Read(ctx *Context, msg interface{}) (interface{}, error) {
	return f(ctx, msg)
}

type OutboundFunc func(ctx *Context, msg interface{}) (interface{}, error)

func (f OutboundFunc) Write(ctx *Context, msg interface{}) (interface{}, error) {
	return f(ctx, msg)
}

// FaultFunc is a fault-only inbound stage. Messages pass through it untouched.
type FaultFunc func(ctx *Context, fault error) error

func (f FaultFunc) Read(_ *Context, msg interface{}) (interface{}, error) {
	return msg, nil
}

func (f FaultFunc) Fault(ctx *Context, fault error) error {
	return f(ctx, fault)
}

// Context is handed to a stage on every call.
type Context struct {
	d      *Dispatcher
	name   string
	index  int
	logger *log.Entry
}

func (c *Context) Name() string {
	return c.name
}

// Index is the stage's registration position within its list.
func (c *Context) Index() int {
	return c.index
}

// Write sends msg down the whole outbound chain.
func (c *Context) Write(msg interface{}) error {
	return c.d.Write(msg)
}

func (c *Context) Logger() *log.Entry {
	return c.logger
}
