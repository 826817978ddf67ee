package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/textloom/pkg/config"
)

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	log.Info("hello", "k", "v")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "k=v")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.Info("structured", "count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "structured", record["msg"])
	assert.Equal(t, float64(3), record["count"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "visible warning")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "chatty", Format: "text"}, &buf)

	log.Debug("below threshold")
	log.Info("at threshold")
	assert.NotContains(t, buf.String(), "below threshold")
	assert.Contains(t, buf.String(), "at threshold")
}
