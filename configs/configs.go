package configs

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/nm-morais/go-frames/pkg/channel"
	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
	"github.com/nm-morais/go-frames/pkg/protocol"
	"github.com/nm-morais/go-frames/pkg/serializationManager"
	"github.com/nm-morais/go-frames/pkg/transport"
)

const caller = "configs"

type Config struct {
	ListenAddr     string `toml:"listen_addr"`
	MaxConnections int    `toml:"max_connections"`
	Workers        int    `toml:"workers"`
	ReadBufferSize int    `toml:"read_buffer_size"`
	// Go duration, empty disables the idle deadline
	ReadTimeout string   `toml:"read_timeout"`
	LogLevel    string   `toml:"log_level"`
	Framing     Framing  `toml:"framing"`
	Protocol    Protocol `toml:"protocol"`
}

// Framing holds the fields of every framing kind; only those of Kind are read.
type Framing struct {
	Kind string `toml:"kind"`

	Size int `toml:"size"`

	Delimiters []string `toml:"delimiters"`
	Strip      bool     `toml:"strip"`
	MaxLength  int      `toml:"max_length"`

	LengthFieldOffset   int `toml:"length_field_offset"`
	LengthFieldLength   int `toml:"length_field_length"`
	LengthAdjustment    int `toml:"length_adjustment"`
	InitialBytesToStrip int `toml:"initial_bytes_to_strip"`
	MaxFrameLength      int `toml:"max_frame_length"`

	FailFast bool `toml:"fail_fast"`
}

// Protocol enables header frames. When enabled the framing table is ignored
// and frames are cut from the header's length field.
type Protocol struct {
	Enabled          bool   `toml:"enabled"`
	MaxPayloadLength uint32 `toml:"max_payload_length"`
	Versions         []int  `toml:"versions"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:9000",
		MaxConnections: 1024,
		Workers:        transport.DefaultWorkers,
		ReadBufferSize: transport.DefaultReadBufferSize,
		LogLevel:       "info",
		Framing: Framing{
			Kind:                frame.KindLengthField.String(),
			Delimiters:          []string{"\r\n", "\n"},
			Strip:               true,
			MaxLength:           8192,
			LengthFieldLength:   4,
			InitialBytesToStrip: 4,
			MaxFrameLength:      1 << 20,
			FailFast:            true,
		},
		Protocol: Protocol{
			MaxPayloadLength: protocol.DefaultMaxPayloadLength,
			Versions:         []int{int(protocol.Version1)},
		},
	}
}

// ReadConfigFromFile overlays the file on DefaultConfig. Unknown keys are
// rejected.
func ReadConfigFromFile(filePath string) (Config, error) {
	config := DefaultConfig()
	meta, err := toml.DecodeFile(filePath, &config)
	if err != nil {
		return Config{}, errors.Wrap(errors.KindInvalidConfig, caller, err, "loading %s", filePath)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.KindInvalidConfig, caller, "unknown keys in %s: %s", filePath, strings.Join(keys, ", "))
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return invalid("listen_addr is required")
	}
	if c.MaxConnections < 0 {
		return invalid("max_connections must not be negative, got %d", c.MaxConnections)
	}
	if c.Workers <= 0 {
		return invalid("workers must be positive, got %d", c.Workers)
	}
	if c.ReadBufferSize <= 0 {
		return invalid("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(errors.KindInvalidConfig, caller, err, "log_level")
	}
	if _, err := c.ReadTimeoutDuration(); err != nil {
		return err
	}
	if c.Protocol.Enabled {
		_, err := c.Protocol.Codec()
		return err
	}
	_, err := c.Framing.ToFrameConfig()
	return err
}

func (c Config) ReadTimeoutDuration() (time.Duration, error) {
	if c.ReadTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return 0, errors.Wrap(errors.KindInvalidConfig, caller, err, "read_timeout")
	}
	if d < 0 {
		return 0, invalid("read_timeout must not be negative, got %s", d)
	}
	return d, nil
}

// ToFrameConfig converts the table into a validated frame.Config.
func (f Framing) ToFrameConfig() (frame.Config, error) {
	var cfg frame.Config
	switch f.Kind {
	case frame.KindFixedLength.String():
		cfg = frame.FixedLength(f.Size)
	case frame.KindDelimiter.String():
		delimiters := make([][]byte, len(f.Delimiters))
		for i, d := range f.Delimiters {
			delimiters[i] = []byte(d)
		}
		cfg = frame.Delimiter(frame.DelimiterConfig{
			Delimiters: delimiters,
			Strip:      f.Strip,
			MaxLength:  f.MaxLength,
			FailFast:   f.FailFast,
		})
	case frame.KindLengthField.String():
		cfg = frame.LengthField(frame.LengthFieldConfig{
			Offset:              f.LengthFieldOffset,
			Length:              f.LengthFieldLength,
			Adjustment:          f.LengthAdjustment,
			InitialBytesToStrip: f.InitialBytesToStrip,
			MaxFrameLength:      f.MaxFrameLength,
			FailFast:            f.FailFast,
		})
	default:
		return frame.Config{}, invalid("unknown framing kind %q", f.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return frame.Config{}, err
	}
	return cfg, nil
}

func (p Protocol) Codec() (*protocol.Codec, error) {
	if len(p.Versions) == 0 {
		return nil, invalid("protocol needs at least one version")
	}
	versions := make([]byte, len(p.Versions))
	for i, v := range p.Versions {
		if v < 1 || v > 255 {
			return nil, invalid("protocol version %d out of range", v)
		}
		versions[i] = byte(v)
	}
	return protocol.NewCodec(p.MaxPayloadLength, versions...), nil
}

// ChannelConfig builds the per-connection decoding config.
func (c Config) ChannelConfig(registry serializationManager.SerializationManager) (channel.Config, error) {
	if c.Protocol.Enabled {
		codec, err := c.Protocol.Codec()
		if err != nil {
			return channel.Config{}, err
		}
		return channel.Config{Protocol: codec, Registry: registry}, nil
	}
	framing, err := c.Framing.ToFrameConfig()
	if err != nil {
		return channel.Config{}, err
	}
	return channel.Config{Framing: &framing, Registry: registry}, nil
}

func (c Config) ServerConfig(registry serializationManager.SerializationManager) (transport.ServerConfig, error) {
	conf, err := c.ChannelConfig(registry)
	if err != nil {
		return transport.ServerConfig{}, err
	}
	timeout, err := c.ReadTimeoutDuration()
	if err != nil {
		return transport.ServerConfig{}, err
	}
	return transport.ServerConfig{
		ListenAddr:     c.ListenAddr,
		MaxConnections: c.MaxConnections,
		Workers:        c.Workers,
		ReadBufferSize: c.ReadBufferSize,
		ReadTimeout:    timeout,
		Channel:        conf,
	}, nil
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.KindInvalidConfig, caller, format, args...)
}
