package config

import (
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is built once at process start and passed by parameter into the
// dispatcher and adjudicator; business logic never reads the environment.
type Config struct {
	Server    ServerConfig
	Chat      ChatConfig
	Imaging   ImagingConfig
	Acoustics AcousticsConfig
	Pipeline  PipelineConfig
	Artifacts ArtifactsConfig
}

type ServerConfig struct {
	Port        string        `envconfig:"SERVER_PORT" default:"8000"`
	Host        string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	// Streaming runs hold the response open for the whole case, so the
	// write timeout must exceed the case deadline.
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"12m"`
}

// ChatConfig points at any OpenAI-compatible chat endpoint; the default
// base URL targets a local model runtime.
type ChatConfig struct {
	Provider    string `envconfig:"CHAT_PROVIDER" default:"openai"`
	APIKey      string `envconfig:"CHAT_API_KEY" default:"unused"`
	APIEndpoint string `envconfig:"CHAT_ENDPOINT" default:"http://localhost:11434/v1"`
	Model       string `envconfig:"CHAT_MODEL" default:"gemma-2-9b-it"`
	APIVersion  string `envconfig:"CHAT_API_VERSION" default:"2023-05-15"`
}

type ImagingConfig struct {
	Endpoint string `envconfig:"IMAGING_ENDPOINT" default:"http://localhost:9001/analyze"`
	Model    string `envconfig:"IMAGING_MODEL" default:"medsiglip"`
	// Hosted inference cold starts take minutes; the timeout is sized
	// accordingly.
	Timeout time.Duration `envconfig:"IMAGING_TIMEOUT" default:"3m"`
}

type AcousticsConfig struct {
	Endpoint string        `envconfig:"ACOUSTICS_ENDPOINT" default:"http://localhost:9002/classify"`
	Model    string        `envconfig:"ACOUSTICS_MODEL" default:"hear"`
	Timeout  time.Duration `envconfig:"ACOUSTICS_TIMEOUT" default:"3m"`
}

type PipelineConfig struct {
	// Adjudicator selects the default mode: deterministic or delegated.
	Adjudicator    string        `envconfig:"ADJUDICATOR" default:"deterministic"`
	HistoryTimeout time.Duration `envconfig:"HISTORY_TIMEOUT" default:"2m"`
	// CaseTimeout bounds the whole fan-out regardless of per-specialist
	// timeouts.
	CaseTimeout   time.Duration `envconfig:"CASE_TIMEOUT" default:"8m"`
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"2"`
	RetryBackoff  time.Duration `envconfig:"RETRY_BACKOFF" default:"2s"`
}

type ArtifactsConfig struct {
	RunsDir string `envconfig:"RUNS_DIR" default:"artifacts/runs"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully")
	return &cfg, nil
}
