package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendCSV      = "csv"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"9000"`
	Environment string `envconfig:"ENV" default:"development"`
	TLSCertFile string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE"`

	// Database (only needed by the postgres backends)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Persistence backends
	RegistryBackend string `envconfig:"REGISTRY_BACKEND" default:"csv"`
	ModelStore      string `envconfig:"MODEL_STORE" default:"file"`

	// Provider
	ProviderType string `envconfig:"PROVIDER_TYPE" default:"openface"`
	OpenFaceURL  string `envconfig:"OPENFACE_URL" default:"http://localhost:5000"`
	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Recognition
	ImgDim          int    `envconfig:"IMG_DIM" default:"96"`
	AugmentUnknown  bool   `envconfig:"AUGMENT_UNKNOWN" default:"false"`
	UnknownPoolPath string `envconfig:"UNKNOWN_POOL_PATH" default:"unknown.json"`
	ModelPath       string `envconfig:"MODEL_PATH" default:"model.sav"`
	// Embedding length the provider produces; persisted models of another
	// length are ignored. 0 accepts any.
	EmbeddingDim int `envconfig:"EMBEDDING_DIM" default:"128"`

	// Filesystem layout
	TrainingDir   string `envconfig:"TRAINING_DIR" default:"training_images"`
	CaptureDir    string `envconfig:"CAPTURE_DIR" default:"captures"`
	DiscardDir    string `envconfig:"DISCARD_DIR" default:"uselessFaces"`
	UserTablePath string `envconfig:"USER_TABLE_PATH" default:"User_Details.csv"`
	FeedbackPath  string `envconfig:"FEEDBACK_PATH" default:"results.csv"`

	// Transport
	OutboundBuffer int `envconfig:"OUTBOUND_BUFFER" default:"256"`
	// Session opens allowed per client IP per minute; 0 disables the limit.
	SessionRateLimit int `envconfig:"SESSION_RATE_LIMIT" default:"30"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks combinations envconfig cannot express on its own.
func (c *Config) Validate() error {
	switch c.RegistryBackend {
	case BackendCSV, BackendPostgres:
	default:
		return fmt.Errorf("unsupported REGISTRY_BACKEND %q", c.RegistryBackend)
	}

	switch c.ModelStore {
	case BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("unsupported MODEL_STORE %q", c.ModelStore)
	}

	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when a postgres backend is selected")
	}

	if c.ImgDim <= 0 {
		return fmt.Errorf("IMG_DIM must be positive, got %d", c.ImgDim)
	}

	if c.EmbeddingDim < 0 {
		return fmt.Errorf("EMBEDDING_DIM must not be negative, got %d", c.EmbeddingDim)
	}

	if c.SessionRateLimit < 0 {
		return fmt.Errorf("SESSION_RATE_LIMIT must not be negative, got %d", c.SessionRateLimit)
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return nil
}

func (c *Config) NeedsDatabase() bool {
	return c.RegistryBackend == BackendPostgres || c.ModelStore == BackendPostgres
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
