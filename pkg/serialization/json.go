package serialization

import (
	"encoding/json"

	"github.com/nm-morais/go-frames/pkg/errors"
)

type jsonCodec struct {
	factory Factory
}

func JSON(factory Factory) Codec {
	return &jsonCodec{factory: factory}
}

func (c *jsonCodec) Name() string {
	return "json"
}

func (c *jsonCodec) Serialize(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.KindCodec, "json", err, "serializing %T", v)
	}
	return b, nil
}

func (c *jsonCodec) Deserialize(payload []byte) (interface{}, error) {
	if c.factory == nil {
		var v interface{}
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, errors.Wrap(errors.KindCodec, "json", err, "deserializing %d bytes", len(payload))
		}
		return v, nil
	}
	v := c.factory()
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, errors.Wrap(errors.KindCodec, "json", err, "deserializing %d bytes into %T", len(payload), v)
	}
	return v, nil
}
