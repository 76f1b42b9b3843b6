package serializationManager

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/serialization"
)

type failingCodec struct{}

func (failingCodec) Name() string { return "failing" }

func (failingCodec) Serialize(interface{}) ([]byte, error) { return nil, fmt.Errorf("boom") }

func (failingCodec) Deserialize([]byte) (interface{}, error) { return nil, fmt.Errorf("boom") }

func TestResolveUnknownAlgorithm(t *testing.T) {
	m := NewSerializationManager()
	_, err := m.Resolve(9)
	require.True(t, errors.Is(err, errors.ErrUnknownAlgorithm))
	assert.False(t, errors.IsFatal(err))

	_, err = m.Deserialize(9, []byte("x"))
	assert.True(t, errors.Is(err, errors.ErrUnknownAlgorithm))
}

func TestDefaultCodecs(t *testing.T) {
	m, err := NewDefault()
	require.NoError(t, err)
	assert.Equal(t, []byte{serialization.AlgorithmRaw, serialization.AlgorithmJSON, serialization.AlgorithmCBOR}, m.IDs())

	payload, err := m.Serialize(serialization.AlgorithmJSON, map[string]int{"a": 1})
	require.NoError(t, err)
	v, err := m.Deserialize(serialization.AlgorithmJSON, payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)
}

func TestForeignCodecErrorsBecomeCodecErrors(t *testing.T) {
	m := NewSerializationManager()
	m.Register(7, failingCodec{})

	_, err := m.Deserialize(7, nil)
	require.True(t, errors.Is(err, errors.ErrCodec))
	assert.False(t, errors.IsFatal(err))

	_, err = m.Serialize(7, "x")
	assert.True(t, errors.Is(err, errors.ErrCodec))
}

func TestConcurrentLookups(t *testing.T) {
	m, err := NewDefault()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := m.Deserialize(serialization.AlgorithmRaw, []byte("x"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
