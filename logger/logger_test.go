package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	ForScanner().Info().Str("site", "amazon").Int("deals", 3).Msg("scan finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scanner", entry["component"])
	assert.Equal(t, "amazon", entry["site"])
	assert.Equal(t, float64(3), entry["deals"])
	assert.Equal(t, "scan finished", entry["message"])
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	Default.WithFields(Fields{"url": "https://example.com"}).
		WithError(errors.New("boom")).
		Warn().Msg("fetch failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "https://example.com", entry["url"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "warn", entry["level"])
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, "warn", getLogLevel().String())

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEALWATCH_ENVIRONMENT", "production")
	assert.Equal(t, "info", getLogLevel().String())

	t.Setenv("DEALWATCH_ENVIRONMENT", "development")
	assert.Equal(t, "debug", getLogLevel().String())
}
