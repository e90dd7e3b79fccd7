package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("before init", zap.String("k", "v"))
		Warn("before init")
		Debug("before init")
		Error("before init")
		Sync()
	})
	assert.NotNil(t, GetLogger())
}

func TestInit_WritesJSONToFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("info", "json", path))

	Info("analysis completed", zap.String("vehicle", "safari"))
	Debug("filtered out at info level")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"message":"analysis completed"`)
	assert.Contains(t, out, `"vehicle":"safari"`)
	assert.False(t, strings.Contains(out, "filtered out"))
}

func TestInit_RejectsBadInput(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	assert.Error(t, Init("loud", "json", "stdout"))
	assert.Error(t, Init("info", "xml", "stdout"))
}
