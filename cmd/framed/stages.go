package main

import (
	"github.com/nm-morais/go-frames/pkg/channel"
	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/message"
	"github.com/nm-morais/go-frames/pkg/pipeline"
)

// demoStages logs every inbound message, echoes it back and handles any
// fault at the tail.
func demoStages(ch *channel.Channel) error {
	p := ch.Pipeline()
	if err := p.AddInbound("logging", pipeline.InboundFunc(logInbound)); err != nil {
		return err
	}
	if err := p.AddInbound("echo", pipeline.InboundFunc(echo)); err != nil {
		return err
	}
	if err := p.AddInbound("exception", pipeline.FaultFunc(handleFault)); err != nil {
		return err
	}
	return p.AddOutbound("logging", pipeline.OutboundFunc(logOutbound))
}

func logInbound(ctx *pipeline.Context, msg interface{}) (interface{}, error) {
	switch m := msg.(type) {
	case []byte:
		ctx.Logger().Infof("Received %d bytes: %q", len(m), m)
	default:
		ctx.Logger().Infof("Received %s", m)
	}
	return msg, nil
}

func logOutbound(ctx *pipeline.Context, msg interface{}) (interface{}, error) {
	ctx.Logger().Debugf("Sending %T", msg)
	return msg, nil
}

func echo(ctx *pipeline.Context, msg interface{}) (interface{}, error) {
	if m, ok := msg.(message.Message); ok {
		if m.Type() == message.TypeHeartbeat {
			return nil, nil
		}
		return nil, ctx.Write(m.Reply(message.StatusOK, m.Body()))
	}
	return nil, ctx.Write(msg)
}

func handleFault(ctx *pipeline.Context, fault error) error {
	var decodeErr *channel.DecodeError
	if errors.As(fault, &decodeErr) {
		ctx.Logger().Warnf("Dropping undecodable %d byte payload: %s", decodeErr.Header.PayloadLength, decodeErr.Err)
		return nil
	}
	ctx.Logger().Errorf("Stage fault: %s", fault)
	return nil
}
