package frame

import (
	"github.com/nm-morais/go-frames/pkg/errors"
)

type Kind uint8

const (
	KindFixedLength Kind = iota + 1
	KindDelimiter
	KindLengthField
)

func (k Kind) String() string {
	switch k {
	case KindFixedLength:
		return "fixed"
	case KindDelimiter:
		return "delimiter"
	case KindLengthField:
		return "length_field"
	}
	return "unknown"
}

// Config selects one framing strategy. Only the field matching Kind is read.
type Config struct {
	Kind        Kind
	FixedLength *FixedLengthConfig
	Delimiter   *DelimiterConfig
	LengthField *LengthFieldConfig
}

type FixedLengthConfig struct {
	Size int
}

type DelimiterConfig struct {
	Delimiters [][]byte
	// Strip drops the delimiter from returned frames. It is consumed either way.
	Strip     bool
	MaxLength int
	FailFast  bool
}

type LengthFieldConfig struct {
	Offset int
	// Length is the width in bytes of the big-endian length field: 1, 2, 3, 4 or 8.
	Length              int
	Adjustment          int
	InitialBytesToStrip int
	MaxFrameLength      int
	FailFast            bool
}

func FixedLength(size int) Config {
	return Config{Kind: KindFixedLength, FixedLength: &FixedLengthConfig{Size: size}}
}

func Delimiter(cfg DelimiterConfig) Config {
	return Config{Kind: KindDelimiter, Delimiter: &cfg}
}

func LengthField(cfg LengthFieldConfig) Config {
	return Config{Kind: KindLengthField, LengthField: &cfg}
}

// LineDelimiters matches "\r\n" and "\n".
func LineDelimiters() [][]byte {
	return [][]byte{[]byte("\r\n"), []byte("\n")}
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindFixedLength:
		if c.FixedLength == nil {
			return invalid("fixed length config missing")
		}
		if c.FixedLength.Size <= 0 {
			return invalid("fixed frame size must be positive, got %d", c.FixedLength.Size)
		}
	case KindDelimiter:
		d := c.Delimiter
		if d == nil {
			return invalid("delimiter config missing")
		}
		if len(d.Delimiters) == 0 {
			return invalid("at least one delimiter is required")
		}
		for i, delim := range d.Delimiters {
			if len(delim) == 0 {
				return invalid("delimiter %d is empty", i)
			}
		}
		if d.MaxLength <= 0 {
			return invalid("max length must be positive, got %d", d.MaxLength)
		}
	case KindLengthField:
		l := c.LengthField
		if l == nil {
			return invalid("length field config missing")
		}
		switch l.Length {
		case 1, 2, 3, 4, 8:
		default:
			return invalid("length field length must be 1, 2, 3, 4 or 8, got %d", l.Length)
		}
		if l.Offset < 0 {
			return invalid("length field offset must not be negative, got %d", l.Offset)
		}
		if l.InitialBytesToStrip < 0 {
			return invalid("initial bytes to strip must not be negative, got %d", l.InitialBytesToStrip)
		}
		if l.MaxFrameLength <= 0 {
			return invalid("max frame length must be positive, got %d", l.MaxFrameLength)
		}
		if l.Offset+l.Length > l.MaxFrameLength {
			return invalid("max frame length %d is smaller than length field end offset %d", l.MaxFrameLength, l.Offset+l.Length)
		}
	default:
		return invalid("unknown framing kind %d", c.Kind)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.KindInvalidConfig, caller, format, args...)
}
