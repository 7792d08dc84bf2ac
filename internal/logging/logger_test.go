package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFor_CategorySwitches(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), map[string]bool{"resolver": false, "driver": true})

	l.For(CategoryResolver).Info("hidden")
	l.For(CategoryDriver).Info("shown")
	l.For(CategoryBrowser).Info("default on")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "driver", entries[0].LoggerName)
	assert.Equal(t, "shown", entries[0].Message)
	assert.Equal(t, "browser", entries[1].LoggerName)
	assert.False(t, l.Enabled(CategoryResolver))
	assert.True(t, l.Enabled(CategoryConfirm))
}

func TestNew_LevelAndFormat(t *testing.T) {
	l, err := New(Options{Level: "warn", Format: "console"}, false)
	require.NoError(t, err)
	assert.False(t, l.Root().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Root().Core().Enabled(zapcore.WarnLevel))

	l, err = New(Options{Level: "warn"}, true)
	require.NoError(t, err)
	assert.True(t, l.Root().Core().Enabled(zapcore.DebugLevel), "verbose forces debug")

	_, err = New(Options{Level: "loud"}, false)
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"}, false)
	assert.Error(t, err)
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := New(Options{Level: "info", File: path}, false)
	require.NoError(t, err)

	l.For(CategoryBoot).Info("Config loaded", zap.String("path", "manifestfill.yaml"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"boot"`)
	assert.Contains(t, string(data), "Config loaded")
}
