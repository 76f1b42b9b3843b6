// Package pipeline routes decoded messages through ordered stages.
//
// Inbound stages run in registration order, outbound stages in reverse
// registration order. A fault raised by an inbound stage skips the remaining
// stages and goes to the first fault handler at or after the faulting stage;
// if there is none it is logged and dropped.
package pipeline

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/nm-morais/go-frames/pkg/errors"
)

const caller = "pipeline"

// Sink receives whatever leaves the head of the outbound chain.
type Sink func(msg interface{}) error

type stage struct {
	name     string
	inbound  InboundStage
	fault    FaultHandler
	outbound OutboundStage
	ctx      *Context
}

// Dispatcher belongs to one connection and is not safe for concurrent use.
// Stages can only be added before the first event.
type Dispatcher struct {
	inbound   []*stage
	outbound  []*stage
	inNames   map[string]struct{} // names are unique per direction
	outNames  map[string]struct{}
	sink      Sink
	sealed    bool
	unhandled int
	logger    *log.Entry
}

func NewDispatcher(sink Sink, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Dispatcher{
		inNames:  map[string]struct{}{},
		outNames: map[string]struct{}{},
		sink:     sink,
		logger:   logger,
	}
}

func (d *Dispatcher) AddInbound(name string, s InboundStage) error {
	st, err := d.newStage(d.inNames, name, len(d.inbound))
	if err != nil {
		return err
	}
	st.inbound = s
	if fh, ok := s.(FaultHandler); ok {
		st.fault = fh
	}
	d.inbound = append(d.inbound, st)
	return nil
}

func (d *Dispatcher) AddOutbound(name string, s OutboundStage) error {
	st, err := d.newStage(d.outNames, name, len(d.outbound))
	if err != nil {
		return err
	}
	st.outbound = s
	d.outbound = append(d.outbound, st)
	return nil
}

func (d *Dispatcher) newStage(taken map[string]struct{}, name string, index int) (*stage, error) {
	if d.sealed {
		return nil, errors.New(errors.KindInvalidConfig, caller, "cannot add stage %q after the first event", name)
	}
	if _, ok := taken[name]; ok {
		return nil, errors.New(errors.KindInvalidConfig, caller, "duplicate stage name %q", name)
	}
	taken[name] = struct{}{}
	st := &stage{name: name}
	st.ctx = &Context{d: d, name: name, index: index, logger: d.logger.WithField("stage", name)}
	return st, nil
}

// FireRead runs msg through the inbound stages.
func (d *Dispatcher) FireRead(msg interface{}) {
	d.sealed = true
	for i, st := range d.inbound {
		out, err := st.read(msg)
		if err != nil {
			d.routeFault(i, err)
			return
		}
		if out == nil {
			return
		}
		msg = out
	}
	d.logger.Debugf("Message reached the end of the pipeline unconsumed: %T", msg)
}

// FireFault raises a fault that did not come from a stage, such as a decode
// failure. The search for a handler starts at the first inbound stage.
func (d *Dispatcher) FireFault(fault error) {
	d.sealed = true
	d.routeFault(0, fault)
}

func (d *Dispatcher) routeFault(from int, fault error) {
	for i := from; i < len(d.inbound); i++ {
		st := d.inbound[i]
		if st.fault == nil {
			continue
		}
		next := st.handleFault(fault)
		if next == nil {
			return
		}
		fault = next
	}
	d.unhandled++
	d.logger.Errorf("Unhandled fault reached the end of the pipeline: %s", fault)
}

// Write runs msg through the outbound stages, last registered first, and
// hands the result to the sink. Outbound faults are returned to the caller.
func (d *Dispatcher) Write(msg interface{}) error {
	d.sealed = true
	for i := len(d.outbound) - 1; i >= 0; i-- {
		st := d.outbound[i]
		out, err := st.write(msg)
		if err != nil {
			d.logger.Warnf("Outbound stage %s failed: %s", st.name, err)
			return err
		}
		if out == nil {
			return nil
		}
		msg = out
	}
	if d.sink == nil {
		return errors.New(errors.KindClosed, caller, "no sink for outbound %T", msg)
	}
	return d.sink(msg)
}

func (d *Dispatcher) InboundNames() []string {
	return names(d.inbound)
}

func (d *Dispatcher) OutboundNames() []string {
	return names(d.outbound)
}

// UnhandledFaults counts faults dropped by the terminal handler.
func (d *Dispatcher) UnhandledFaults() int {
	return d.unhandled
}

func names(stages []*stage) []string {
	out := make([]string, len(stages))
	for i, st := range stages {
		out[i] = st.name
	}
	return out
}

func (st *stage) read(msg interface{}) (out interface{}, err error) {
	defer recoverStage(st, &err)
	return st.inbound.Read(st.ctx, msg)
}

func (st *stage) write(msg interface{}) (out interface{}, err error) {
	defer recoverStage(st, &err)
	return st.outbound.Write(st.ctx, msg)
}

func (st *stage) handleFault(fault error) (err error) {
	defer recoverStage(st, &err)
	return st.fault.Fault(st.ctx, fault)
}

func recoverStage(st *stage, err *error) {
	if x := recover(); x != nil {
		st.ctx.logger.Errorf("Stage panicked: %v, STACK: %s", x, string(debug.Stack()))
		*err = fmt.Errorf("stage %s panicked: %v", st.name, x)
	}
}
