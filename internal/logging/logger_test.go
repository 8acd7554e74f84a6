package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(&buf, level)
	t.Cleanup(func() { Configure(os.Stdout, "info") })
	return &buf
}

func TestLoggerV2_WritesStructuredFields(t *testing.T) {
	buf := captureLogs(t, "debug")

	NewLoggerV2("invoice-service").Info("Invoice created", Fields{
		"invoice_id": "inv_123",
		"total":      126.0,
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Invoice created", line["message"])
	assert.Equal(t, "invoice-service", line["component"])
	assert.Equal(t, "billing-service", line["service"])
	assert.Equal(t, "inv_123", line["invoice_id"])
	assert.Equal(t, "info", line["level"])
}

func TestLoggerV2_RespectsLevel(t *testing.T) {
	buf := captureLogs(t, "warn")

	logger := NewLoggerV2("cache")
	logger.Debug("Cache miss")
	logger.Info("Cache hit")
	assert.Zero(t, buf.Len())

	logger.Error("Cache get error", Fields{"error": "boom"})
	assert.Contains(t, buf.String(), "Cache get error")
}

func TestEntry_MergesFields(t *testing.T) {
	buf := captureLogs(t, "info")

	NewLoggerV2("consumer").With(Fields{"topic": "orders"}).Info("Received message", Fields{"offset": 42})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "orders", line["topic"])
	assert.EqualValues(t, 42, line["offset"])
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("chatty").String())
	assert.Equal(t, "debug", parseLevel(" debug ").String())
}
