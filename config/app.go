package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App holds the service settings read from the environment.
type App struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	FacialAnalysisURL string        `envconfig:"FACIAL_ANALYSIS_URL" default:"http://localhost:8001"`
	AudioAnalysisURL  string        `envconfig:"AUDIO_ANALYSIS_URL" default:"http://localhost:8002"`
	TextAnalysisURL   string        `envconfig:"TEXT_ANALYSIS_URL" default:"http://localhost:8003"`
	AnalyzerTimeout   time.Duration `envconfig:"ANALYZER_TIMEOUT" default:"30s"`
	HealthTimeout     time.Duration `envconfig:"ANALYZER_HEALTH_TIMEOUT" default:"5s"`

	JWTSecret   string `envconfig:"JWT_SECRET"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	StorageBackend        string `envconfig:"STORAGE_BACKEND" default:"local"` // local|gcs
	UploadPath            string `envconfig:"UPLOAD_PATH" default:"./uploads"`
	MaxFileSize           int64  `envconfig:"MAX_FILE_SIZE" default:"104857600"`
	GCSBucket             string `envconfig:"GCS_BUCKET"`
	GoogleCredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE"`

	GoogleSTTEnabled       bool `envconfig:"GOOGLE_STT_ENABLED" default:"false"`
	TranscribeAudioAnswers bool `envconfig:"TRANSCRIBE_AUDIO_ANSWERS" default:"true"`

	OrchestrationLiveness time.Duration `envconfig:"ORCHESTRATION_LIVENESS" default:"10m"`
	SweepInterval         time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	EvaluationWorkers     int           `envconfig:"EVALUATION_WORKERS" default:"4"`
	StatusCacheTTL        time.Duration `envconfig:"STATUS_CACHE_TTL" default:"10m"`
}

// LoadApp reads App from the environment and validates it.
func LoadApp() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *App) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}
	switch c.StorageBackend {
	case "local":
		if c.UploadPath == "" {
			return errors.New("UPLOAD_PATH must be set for local storage")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return errors.New("GCS_BUCKET must be set when STORAGE_BACKEND=gcs")
		}
	default:
		return errors.New("STORAGE_BACKEND must be local or gcs")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("MAX_FILE_SIZE must be positive")
	}
	if c.EvaluationWorkers <= 0 {
		c.EvaluationWorkers = 1
	}
	if c.OrchestrationLiveness <= 0 {
		return errors.New("ORCHESTRATION_LIVENESS must be positive")
	}
	return nil
}
