package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Configure("debug", "json", &buf)
	require.NoError(t, err)

	logger.WithField("phase", "setup").Debug("starting")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "starting", entry["msg"])
	assert.Equal(t, "setup", entry["phase"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigureTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Configure("warn", "text", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	_, err := Configure("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = Configure("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFailureLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Configure("info", "text", &buf)
	require.NoError(t, err)

	FailureLogger{Logger: logger}.LogFailure(3, errors.New("duplicate key"))
	out := buf.String()
	assert.True(t, strings.Contains(out, "worker=3"), out)
	assert.Contains(t, out, "duplicate key")
	assert.Contains(t, out, "level=warning")
}

func TestPrometheusHookCountsLevels(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(reg)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)
	logger.Warn("one")
	logger.Warn("two")
	logger.Info("three")

	assert.Equal(t, 2.0, testutil.ToFloat64(hook.counters[logrus.WarnLevel]))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.counters[logrus.InfoLevel]))
}

func TestHeldWriterBuffersUntilRelease(t *testing.T) {
	var out bytes.Buffer
	held := NewHeldWriter(&out, 1<<10)
	logger, err := Configure("info", "text", held)
	require.NoError(t, err)

	logger.Info("bench started")
	assert.Empty(t, out.String())

	require.NoError(t, held.Release())
	assert.Contains(t, out.String(), "bench started")

	logger.Warn("after release")
	assert.Contains(t, out.String(), "after release")
	require.NoError(t, held.Release())
}

func TestHeldWriterDropsPastLimit(t *testing.T) {
	var out bytes.Buffer
	held := NewHeldWriter(&out, 8)

	n, err := held.Write([]byte("first\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	n, err = held.Write([]byte("second line\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	require.NoError(t, held.Release())
	assert.Equal(t, "first\n1 log lines dropped while the live view was active\n", out.String())
}
