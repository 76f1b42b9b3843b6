package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nm-morais/go-frames/pkg/errors"
	"github.com/nm-morais/go-frames/pkg/frame"
	"github.com/nm-morais/go-frames/pkg/serializationManager"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "framed.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestReadDelimiterConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr = "0.0.0.0:7000"
workers = 8
read_timeout = "30s"
log_level = "debug"

[framing]
kind = "delimiter"
delimiters = ["&", "\r\n"]
max_length = 128
fail_fast = false
`)
	config, err := ReadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", config.ListenAddr)
	assert.Equal(t, 8, config.Workers)
	assert.Equal(t, 1024, config.MaxConnections)

	timeout, err := config.ReadTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)

	cfg, err := config.Framing.ToFrameConfig()
	require.NoError(t, err)
	assert.Equal(t, frame.KindDelimiter, cfg.Kind)
	assert.Equal(t, [][]byte{[]byte("&"), []byte("\r\n")}, cfg.Delimiter.Delimiters)
	assert.Equal(t, 128, cfg.Delimiter.MaxLength)
	assert.True(t, cfg.Delimiter.Strip)
	assert.False(t, cfg.Delimiter.FailFast)
}

func TestReadProtocolConfig(t *testing.T) {
	path := writeConfig(t, `
[protocol]
enabled = true
max_payload_length = 1024
versions = [1, 2]
`)
	config, err := ReadConfigFromFile(path)
	require.NoError(t, err)

	registry, err := serializationManager.NewDefault()
	require.NoError(t, err)
	server, err := config.ServerConfig(registry)
	require.NoError(t, err)

	assert.Nil(t, server.Channel.Framing)
	require.NotNil(t, server.Channel.Protocol)
	assert.Equal(t, uint32(1024), server.Channel.Protocol.MaxPayloadLength())
	assert.True(t, server.Channel.Protocol.SupportsVersion(2))
	assert.False(t, server.Channel.Protocol.SupportsVersion(3))
}

func TestDefaultFramingIsLengthPrefixed(t *testing.T) {
	registry, err := serializationManager.NewDefault()
	require.NoError(t, err)
	conf, err := DefaultConfig().ChannelConfig(registry)
	require.NoError(t, err)
	require.NotNil(t, conf.Framing)
	assert.Equal(t, frame.KindLengthField, conf.Framing.Kind)
	assert.Equal(t, 4, conf.Framing.LengthField.Length)
}

func TestReadConfigRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":      `listen_port = 9`,
		"bad framing kind": "[framing]\nkind = \"magic\"",
		"bad field length": "[framing]\nlength_field_length = 5",
		"bad level":        `log_level = "loud"`,
		"bad timeout":      `read_timeout = "soon"`,
		"no workers":       `workers = 0`,
		"bad version":      "[protocol]\nenabled = true\nversions = [300]",
		"not toml":         `listen_addr = `,
	}
	for name, contents := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadConfigFromFile(writeConfig(t, contents))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "got %v", err)
		})
	}

	_, err := ReadConfigFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestSampleConfig(t *testing.T) {
	config, err := ReadConfigFromFile("framed.toml")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, mustTimeout(t, config))
	assert.Equal(t, DefaultConfig().Framing.MaxFrameLength, config.Framing.MaxFrameLength)
}

func mustTimeout(t *testing.T, config Config) time.Duration {
	d, err := config.ReadTimeoutDuration()
	require.NoError(t, err)
	return d
}
