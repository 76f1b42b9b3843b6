package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm-morais/go-frames/pkg/errors"
)

type greeting struct {
	From string `json:"from" cbor:"from"`
	Seq  int    `json:"seq" cbor:"seq"`
}

func newGreeting() interface{} {
	return &greeting{}
}

func TestTypedCodecs(t *testing.T) {
	cborCodec, err := CBOR(newGreeting)
	require.NoError(t, err)

	for _, codec := range []Codec{JSON(newGreeting), cborCodec} {
		in := &greeting{From: "node-1", Seq: 42}
		payload, err := codec.Serialize(in)
		require.NoError(t, err, codec.Name())

		out, err := codec.Deserialize(payload)
		require.NoError(t, err, codec.Name())
		assert.Equal(t, in, out, codec.Name())
	}
}

func TestGenericDecoding(t *testing.T) {
	out, err := JSON(nil).Deserialize([]byte(`{"from":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"from": "a"}, out)

	cborCodec, err := CBOR(nil)
	require.NoError(t, err)
	payload, err := cborCodec.Serialize([]interface{}{"x", uint64(1)})
	require.NoError(t, err)
	out, err = cborCodec.Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", uint64(1)}, out)
}

func TestMalformedPayloadIsCodecError(t *testing.T) {
	cborCodec, err := CBOR(newGreeting)
	require.NoError(t, err)

	for _, codec := range []Codec{JSON(newGreeting), JSON(nil), cborCodec} {
		_, err := codec.Deserialize([]byte{0xFF, 0x00, '{'})
		require.Error(t, err, codec.Name())
		assert.True(t, errors.Is(err, errors.ErrCodec), codec.Name())
		assert.False(t, errors.IsFatal(err))
	}

	_, err = JSON(nil).Serialize(make(chan int))
	assert.True(t, errors.Is(err, errors.ErrCodec))
}

func TestRaw(t *testing.T) {
	codec := Raw()
	b, err := codec.Serialize("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	src := []byte("xyz")
	out, err := codec.Deserialize(src)
	require.NoError(t, err)
	src[0] = 'q'
	assert.Equal(t, []byte("xyz"), out)

	_, err = codec.Serialize(12)
	assert.True(t, errors.Is(err, errors.ErrCodec))
}
