package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log := New(Options{FilePath: path, Production: true})

	log.Named("session").Info("document added", zap.String("document", "a.pdf"))
	log.Debug("not written to file")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"message":"document added"`)
	assert.Contains(t, lines[0], `"logger":"session"`)
	assert.Contains(t, lines[0], `"document":"a.pdf"`)
	assert.Contains(t, lines[0], `"level":"INFO"`)
}

func TestNew_ConsoleOnly(t *testing.T) {
	log := New(Options{})
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel), "development logger enables debug")
}
