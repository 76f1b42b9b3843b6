// Package serialization holds the payload codecs the protocol header selects
// by algorithm id.
package serialization

// Algorithm ids of the built-in codecs.
const (
	AlgorithmRaw  byte = 0
	AlgorithmJSON byte = 1
	AlgorithmCBOR byte = 2
)

type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
}

type Deserializer interface {
	Deserialize(payload []byte) (interface{}, error)
}

// Codec turns payloads into application objects and back.
type Codec interface {
	Serializer
	Deserializer
	Name() string
}

// Factory returns a fresh value for a codec to decode into, e.g. a pointer to
// a struct. Codecs built with a nil Factory decode into generic values.
type Factory func() interface{}
