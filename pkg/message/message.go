package message

import (
	"fmt"

	"github.com/nm-morais/go-frames/pkg/protocol"
)

// Message types carried in the header type byte.
const (
	TypeRequest   byte = 1
	TypeResponse  byte = 2
	TypeHeartbeat byte = 3
)

const (
	StatusOK    byte = 0
	StatusError byte = 1
)

// Message pairs a protocol header with its deserialized body. It is a value
// type; copies share the body.
type Message struct {
	header protocol.Header
	body   interface{}
}

func New(header protocol.Header, body interface{}) Message {
	return Message{header: header, body: body}
}

// NewRequest builds a version 1 request encoded with algorithm.
func NewRequest(algorithm byte, body interface{}) Message {
	return New(protocol.NewHeader(algorithm, TypeRequest, StatusOK), body)
}

func (m Message) Header() protocol.Header {
	return m.header
}

func (m Message) Body() interface{} {
	return m.body
}

func (m Message) Type() byte {
	return m.header.MessageType
}

func (m Message) Algorithm() byte {
	return m.header.Algorithm
}

// Reply answers m with body, keeping version, algorithm and reserved bytes.
func (m Message) Reply(status byte, body interface{}) Message {
	h := m.header
	h.MessageType = TypeResponse
	h.Status = status
	h.PayloadLength = 0
	return New(h, body)
}

func (m Message) String() string {
	return fmt.Sprintf("Message{type=%d status=%d algorithm=%d body=%T}", m.header.MessageType, m.header.Status, m.header.Algorithm, m.body)
}
