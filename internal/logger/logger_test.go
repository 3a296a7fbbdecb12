package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentlayer.log")

	require.NoError(t, Init(DefaultRotation(path), false))
	Info("compiled %d rules", 3)
	Debug("hidden at info level")
	Error("service failed: %s", "boom")
	WithFields(logrus.Fields{"request_id": "abc"}).Info("structured")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "compiled 3 rules")
	assert.Contains(t, out, "service failed: boom")
	assert.Contains(t, out, "request_id=abc")
	assert.NotContains(t, out, "hidden at info level")
}

func TestInit_Verbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentlayer.log")

	require.NoError(t, Init(DefaultRotation(path), true))
	Debug("visible at debug level")
	Close()
	logrus.SetLevel(logrus.InfoLevel)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible at debug level")
}

func TestClose_WithoutInit(t *testing.T) {
	assert.NotPanics(t, Close)
}
