// Package protocol implements the custom binary protocol header:
//
//	magic(2) | version(1) | algorithm(1) | type(1) | status(1) | reserved(4) | payload length(4) | payload
//
// All integers are big-endian.
package protocol

import (
	"encoding/binary"

	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
)

const (
	Magic        uint16 = 0xCAFE
	HeaderLength        = 14

	Version1 byte = 1

	DefaultMaxPayloadLength uint32 = 8 * 1024 * 1024

	caller = "protocolHeader"
)

type Header struct {
	Magic         uint16
	Version       byte
	Algorithm     byte
	MessageType   byte
	Status        byte
	Reserved      [4]byte
	PayloadLength uint32
}

// NewHeader returns a header with the protocol magic and version 1.
func NewHeader(algorithm, messageType, status byte) Header {
	return Header{
		Magic:       Magic,
		Version:     Version1,
		Algorithm:   algorithm,
		MessageType: messageType,
		Status:      status,
	}
}

// Codec parses and serializes headers against a payload ceiling and a set of
// accepted versions. It is immutable and safe for concurrent use.
type Codec struct {
	maxPayloadLength uint32
	versions         map[byte]struct{}
}

// NewCodec accepts Version1 when no versions are given. A zero ceiling means
// DefaultMaxPayloadLength.
func NewCodec(maxPayloadLength uint32, versions ...byte) *Codec {
	if maxPayloadLength == 0 {
		maxPayloadLength = DefaultMaxPayloadLength
	}
	if len(versions) == 0 {
		versions = []byte{Version1}
	}
	c := &Codec{maxPayloadLength: maxPayloadLength, versions: make(map[byte]struct{}, len(versions))}
	for _, v := range versions {
		c.versions[v] = struct{}{}
	}
	return c
}

func (c *Codec) MaxPayloadLength() uint32 {
	return c.maxPayloadLength
}

func (c *Codec) SupportsVersion(v byte) bool {
	_, ok := c.versions[v]
	return ok
}

// Parse splits a complete frame into its header and payload. The payload
// aliases frameBytes.
func (c *Codec) Parse(frameBytes []byte) (Header, []byte, error) {
	if len(frameBytes) < HeaderLength {
		err := errors.New(errors.KindTruncated, caller, "frame of %d bytes is shorter than the %d byte header", len(frameBytes), HeaderLength)
		return Header{}, nil, errors.WithDetails(err, errors.Details{Offset: 0, Declared: HeaderLength, Available: int64(len(frameBytes)), Limit: -1})
	}
	h := decodeHeader(frameBytes)
	if err := c.validate(h); err != nil {
		return Header{}, nil, err
	}
	available := len(frameBytes) - HeaderLength
	if int64(h.PayloadLength) != int64(available) {
		err := errors.New(errors.KindPayloadTooLarge, caller, "declared payload length %d does not match %d available bytes", h.PayloadLength, available)
		return Header{}, nil, errors.WithDetails(err, errors.Details{Offset: 10, Declared: int64(h.PayloadLength), Available: int64(available), Limit: int64(c.maxPayloadLength)})
	}
	return h, frameBytes[HeaderLength:], nil
}

// Serialize encodes h followed by payload. Magic and payload length are
// always written from the protocol constant and len(payload).
func (c *Codec) Serialize(h Header, payload []byte) ([]byte, error) {
	if h.Magic != 0 && h.Magic != Magic {
		return nil, errors.New(errors.KindBadMagic, caller, "header magic 0x%04X, expected 0x%04X", h.Magic, Magic)
	}
	h.Magic = Magic
	if uint64(len(payload)) > uint64(c.maxPayloadLength) {
		err := errors.New(errors.KindPayloadTooLarge, caller, "payload of %d bytes exceeds max %d", len(payload), c.maxPayloadLength)
		return nil, errors.WithDetails(err, errors.Details{Offset: -1, Declared: int64(len(payload)), Available: int64(len(payload)), Limit: int64(c.maxPayloadLength)})
	}
	h.PayloadLength = uint32(len(payload))
	if !c.SupportsVersion(h.Version) {
		return nil, errors.New(errors.KindUnsupportedVersion, caller, "version %d", h.Version)
	}

	buf := make([]byte, HeaderLength, HeaderLength+len(payload))
	encodeHeader(buf, h)
	return append(buf, payload...), nil
}

func (c *Codec) validate(h Header) error {
	if h.Magic != Magic {
		err := errors.New(errors.KindBadMagic, caller, "got 0x%04X, expected 0x%04X", h.Magic, Magic)
		return errors.WithDetails(err, errors.Details{Offset: 0, Declared: -1, Available: -1, Limit: -1})
	}
	if !c.SupportsVersion(h.Version) {
		err := errors.New(errors.KindUnsupportedVersion, caller, "version %d", h.Version)
		return errors.WithDetails(err, errors.Details{Offset: 2, Declared: -1, Available: -1, Limit: -1})
	}
	if h.PayloadLength > c.maxPayloadLength {
		err := errors.New(errors.KindPayloadTooLarge, caller, "declared payload length %d exceeds max %d", h.PayloadLength, c.maxPayloadLength)
		return errors.WithDetails(err, errors.Details{Offset: 10, Declared: int64(h.PayloadLength), Available: -1, Limit: int64(c.maxPayloadLength)})
	}
	return nil
}

// LengthFieldConfig frames protocol messages with the generic length field
// framer; it cuts the same frames as Framer but checks nothing but size.
func (c *Codec) LengthFieldConfig() frame.Config {
	return frame.LengthField(frame.LengthFieldConfig{
		Offset:         10,
		Length:         4,
		MaxFrameLength: HeaderLength + int(c.maxPayloadLength),
		FailFast:       true,
	})
}

func decodeHeader(b []byte) Header {
	h := Header{
		Magic:         binary.BigEndian.Uint16(b[0:2]),
		Version:       b[2],
		Algorithm:     b[3],
		MessageType:   b[4],
		Status:        b[5],
		PayloadLength: binary.BigEndian.Uint32(b[10:14]),
	}
	copy(h.Reserved[:], b[6:10])
	return h
}

func encodeHeader(b []byte, h Header) {
	binary.BigEndian.PutUint16(b[0:2], h.Magic)
	b[2] = h.Version
	b[3] = h.Algorithm
	b[4] = h.MessageType
	b[5] = h.Status
	copy(b[6:10], h.Reserved[:])
	binary.BigEndian.PutUint32(b[10:14], h.PayloadLength)
}
