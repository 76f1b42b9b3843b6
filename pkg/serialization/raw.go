package serialization

import (
	"github.com/nm-morais/go-frames/pkg/errors"
)

type rawCodec struct{}

// Raw passes payload bytes through. It serializes []byte and string.
func Raw() Codec {
	return rawCodec{}
}

func (rawCodec) Name() string {
	return "raw"
}

func (rawCodec) Serialize(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, errors.New(errors.KindCodec, "raw", "cannot serialize %T", v)
}

func (rawCodec) Deserialize(payload []byte) (interface{}, error) {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}
