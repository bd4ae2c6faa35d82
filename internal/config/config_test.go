package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "30")
	t.Setenv("MAX_UPLOAD_MB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "en-US-AriaNeural", cfg.AzureSpeechVoice)
}

func TestLoad_ReleaseRequiresSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", defaultJWTSecret)

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load()
	assert.NoError(t, err)
}

func TestViewerClientID(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{env: "production", want: "prod-id"},
		{env: "development", want: "local-id"},
		{env: "", want: "local-id"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{AppEnv: tt.env, ViewerClientIDLocal: "local-id", ViewerClientIDProd: "prod-id"}
			assert.Equal(t, tt.want, cfg.ViewerClientID())
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SOME_INT", "nope")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
	t.Setenv("SOME_INT", "12")
	assert.Equal(t, 12, getEnvInt("SOME_INT", 7))
}
