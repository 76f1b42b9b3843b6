package message

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nm-morais/go-frames/pkg/protocol"
)

func TestReplyKeepsRoutingFields(t *testing.T) {
	h := protocol.NewHeader(2, TypeRequest, StatusOK)
	h.Reserved = [4]byte{1, 2, 3, 4}
	h.PayloadLength = 9
	req := New(h, "body")

	reply := req.Reply(StatusError, "oops")
	assert.Equal(t, TypeResponse, reply.Type())
	assert.Equal(t, StatusError, reply.Header().Status)
	assert.Equal(t, byte(2), reply.Algorithm())
	assert.Equal(t, h.Reserved, reply.Header().Reserved)
	assert.Equal(t, uint32(0), reply.Header().PayloadLength)
	assert.Equal(t, "oops", reply.Body())

	// the request is untouched
	assert.Equal(t, TypeRequest, req.Type())
	assert.Equal(t, "body", req.Body())
}

func TestNewRequest(t *testing.T) {
	m := NewRequest(1, []byte("x"))
	assert.Equal(t, protocol.Magic, m.Header().Magic)
	assert.Equal(t, protocol.Version1, m.Header().Version)
	assert.Equal(t, TypeRequest, m.Type())
	assert.Contains(t, m.String(), "type=1")
}
