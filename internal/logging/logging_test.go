package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reqflow/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "info", level: "info", wantDebug: false, wantInfo: true},
		{name: "debug", level: "debug", wantDebug: true, wantInfo: true},
		{name: "warn", level: "warn", wantDebug: false, wantInfo: false},
		{name: "invalid defaults to info", level: "bogus", wantDebug: false, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(config.LogConfig{Level: tt.level, Format: "console"})
			require.NoError(t, err)
			defer func() { _ = logger.Sync() }()

			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.wantInfo, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqflow.log")

	logger, err := New(config.LogConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)
	logger.Info("stage entered", zap.String("step", "get_user_stories"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "stage entered", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "get_user_stories", entry["step"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger))
}

func TestWithLogger_and_LoggerFrom(t *testing.T) {
	logger := zap.NewNop()
	fallback := zap.NewExample()

	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, LoggerFrom(ctx, fallback))
	assert.Same(t, fallback, LoggerFrom(context.Background(), fallback))
}
