package serializationManager

import (
	"github.com/nm-morais/go-frames/internal/serialization"
	pkgSerialization "github.com/nm-morais/go-frames/pkg/serialization"
)

// SerializationManager maps one-byte algorithm ids to payload codecs.
// Register is meant for startup; lookups are safe from many connections.
type SerializationManager interface {
	Register(id byte, codec pkgSerialization.Codec)
	Resolve(id byte) (pkgSerialization.Codec, error)
	Deserialize(id byte, payload []byte) (interface{}, error)
	Serialize(id byte, v interface{}) ([]byte, error)
	IDs() []byte
}

func NewSerializationManager() SerializationManager {
	return serialization.NewManager()
}

// NewDefault registers the raw, JSON and CBOR codecs under their built-in ids,
// decoding into generic values.
func NewDefault() (SerializationManager, error) {
	m := serialization.NewManager()
	cborCodec, err := pkgSerialization.CBOR(nil)
	if err != nil {
		return nil, err
	}
	m.Register(pkgSerialization.AlgorithmRaw, pkgSerialization.Raw())
	m.Register(pkgSerialization.AlgorithmJSON, pkgSerialization.JSON(nil))
	m.Register(pkgSerialization.AlgorithmCBOR, cborCodec)
	return m, nil
}
