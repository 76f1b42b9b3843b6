package serialization

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/nm-morais/go-frames/pkg/errors"
)

type cborCodec struct {
	factory Factory
	enc     cbor.EncMode
	dec     cbor.DecMode
}

// CBOR encodes with canonical options so equal values give equal payloads.
func CBOR(factory Factory) (Codec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidConfig, "cbor", err, "building encoder")
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidConfig, "cbor", err, "building decoder")
	}
	return &cborCodec{factory: factory, enc: enc, dec: dec}, nil
}

func (c *cborCodec) Name() string {
	return "cbor"
}

func (c *cborCodec) Serialize(v interface{}) ([]byte, error) {
	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.KindCodec, "cbor", err, "serializing %T", v)
	}
	return b, nil
}

func (c *cborCodec) Deserialize(payload []byte) (interface{}, error) {
	if c.factory == nil {
		var v interface{}
		if err := c.dec.Unmarshal(payload, &v); err != nil {
			return nil, errors.Wrap(errors.KindCodec, "cbor", err, "deserializing %d bytes", len(payload))
		}
		return v, nil
	}
	v := c.factory()
	if err := c.dec.Unmarshal(payload, v); err != nil {
		return nil, errors.Wrap(errors.KindCodec, "cbor", err, "deserializing %d bytes into %T", len(payload), v)
	}
	return v, nil
}
