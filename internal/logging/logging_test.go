package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blendcl.log")
	require.NoError(t, Init("debug", path, nil))
	t.Cleanup(Close)

	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())
	Get().WithField("stage", "context created").Debug("advanced")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "advanced")
	assert.Contains(t, string(data), `stage="context created"`)
}

func TestInitWritesToConsole(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "blendcl.log")
	require.NoError(t, Init("info", path, &console))
	t.Cleanup(Close)

	Get().Info("before close")
	Get().Debug("filtered")
	Close()
	Get().Warn("after close")

	out := console.String()
	assert.Contains(t, out, "before close")
	assert.Contains(t, out, "after close")
	assert.NotContains(t, out, "filtered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init("chatty", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chatty")
}

func TestGetWithoutInit(t *testing.T) {
	log = nil
	assert.NotNil(t, Get())
	assert.Same(t, Get(), Get())
}
