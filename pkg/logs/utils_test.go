package logs

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerPrefixesOwner(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	logger := NewLogger("accumulator")
	logger.Info("fed 12 bytes")

	assert.Contains(t, buf.String(), "[accumulator] fed 12 bytes")
}

func TestSetLevel(t *testing.T) {
	defer func() { require.NoError(t, SetLevel("info")) }()

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, log.DebugLevel, NewLogger("x").GetLevel())

	assert.Error(t, SetLevel("loud"))
}
