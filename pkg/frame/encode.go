package frame

import (
	"bytes"

	"github.com/nm-morais/go-frames/pkg/errors"
)

const encodeCaller = "frameEncoder"

// Encode frames payload so that a Framer built from cfg extracts it again.
// Delimiter frames get the first configured delimiter appended. Length field
// frames must have the field at offset 0 and payload is the content that
// follows it.
func Encode(cfg Config, payload []byte) ([]byte, error) {
	if err := Check(cfg, payload); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindDelimiter:
		delim := cfg.Delimiter.Delimiters[0]
		out := make([]byte, 0, len(payload)+len(delim))
		out = append(out, payload...)
		return append(out, delim...), nil
	case KindLengthField:
		l := cfg.LengthField
		out := make([]byte, l.Length, l.Length+len(payload))
		putUint(out, uint64(len(payload)-l.Adjustment))
		return append(out, payload...), nil
	}
	return append([]byte(nil), payload...), nil
}

// Check reports whether Encode would accept payload under cfg.
func Check(cfg Config, payload []byte) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.Kind {
	case KindFixedLength:
		if len(payload) != cfg.FixedLength.Size {
			return errors.New(errors.KindCorruptedFrame, encodeCaller,
				"payload of %d bytes does not match fixed frame size %d", len(payload), cfg.FixedLength.Size)
		}

	case KindDelimiter:
		d := cfg.Delimiter
		if len(payload) > d.MaxLength {
			return tooLarge(encodeCaller, int64(len(payload)), int64(len(payload)), int64(d.MaxLength))
		}
		for _, delim := range d.Delimiters {
			if bytes.Contains(payload, delim) {
				return errors.New(errors.KindCorruptedFrame, encodeCaller, "payload contains delimiter %q", delim)
			}
		}

	case KindLengthField:
		l := cfg.LengthField
		if l.Offset != 0 {
			return errors.New(errors.KindInvalidConfig, encodeCaller, "cannot encode length field at offset %d", l.Offset)
		}
		frameLength := int64(l.Length + len(payload))
		if frameLength > int64(l.MaxFrameLength) {
			return tooLarge(encodeCaller, frameLength, frameLength, int64(l.MaxFrameLength))
		}
		value := int64(len(payload) - l.Adjustment)
		if value < 0 || (l.Length < 8 && value >= int64(1)<<(8*uint(l.Length))) {
			return errors.New(errors.KindCorruptedFrame, encodeCaller,
				"length value %d does not fit a %d byte field", value, l.Length)
		}
	}
	return nil
}

func putUint(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
