package serialization

import (
	"sort"
	"sync"

	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/serialization"
)

const caller = "serializationManager"

type Manager struct {
	codecs *sync.Map
}

func NewManager() *Manager {
	return &Manager{
		codecs: &sync.Map{},
	}
}

// Register replaces any codec already bound to id.
func (m *Manager) Register(id byte, codec serialization.Codec) {
	m.codecs.Store(id, codec)
}

func (m *Manager) Resolve(id byte) (serialization.Codec, error) {
	codec, ok := m.codecs.Load(id)
	if !ok {
		return nil, errors.New(errors.KindUnknownAlgorithm, caller, "no codec for algorithm id %d", id)
	}
	return codec.(serialization.Codec), nil
}

func (m *Manager) Deserialize(id byte, payload []byte) (interface{}, error) {
	codec, err := m.Resolve(id)
	if err != nil {
		return nil, err
	}
	v, err := codec.Deserialize(payload)
	if err != nil {
		return nil, asCodecError(err, codec, id)
	}
	return v, nil
}

func (m *Manager) Serialize(id byte, v interface{}) ([]byte, error) {
	codec, err := m.Resolve(id)
	if err != nil {
		return nil, err
	}
	b, err := codec.Serialize(v)
	if err != nil {
		return nil, asCodecError(err, codec, id)
	}
	return b, nil
}

func (m *Manager) IDs() []byte {
	var ids []byte
	m.codecs.Range(func(k, _ interface{}) bool {
		ids = append(ids, k.(byte))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// asCodecError keeps codec failures non-fatal whatever the codec returned.
func asCodecError(err error, codec serialization.Codec, id byte) error {
	if errors.KindOf(err) == errors.KindCodec {
		return err
	}
	return errors.Wrap(errors.KindCodec, caller, err, "codec %s (id %d)", codec.Name(), id)
}
