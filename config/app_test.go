package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 10*time.Minute, cfg.OrchestrationLiveness)
	assert.True(t, cfg.TranscribeAudioAnswers)
	assert.False(t, cfg.GoogleSTTEnabled)
}

func TestLoadAppOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FACIAL_ANALYSIS_URL", "http://facial:9000")
	t.Setenv("ORCHESTRATION_LIVENESS", "90s")
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("GCS_BUCKET", "answers")

	cfg, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, "http://facial:9000", cfg.FacialAnalysisURL)
	assert.Equal(t, 90*time.Second, cfg.OrchestrationLiveness)
	assert.Equal(t, "answers", cfg.GCSBucket)
}

func TestLoadAppRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadApp()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidateStorageBackend(t *testing.T) {
	cfg := App{JWTSecret: "x", StorageBackend: "gcs", MaxFileSize: 1, OrchestrationLiveness: time.Minute}
	assert.ErrorContains(t, cfg.Validate(), "GCS_BUCKET")

	cfg.StorageBackend = "s3"
	assert.Error(t, cfg.Validate())
}
