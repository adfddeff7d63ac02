// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"photo-enhance-pipeline/internal/resilience"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type WorkerConfig struct {
	Workers     int           `yaml:"workers"`      // concurrent pipeline workers
	PollTimeout time.Duration `yaml:"poll_timeout"` // queue blocking-pop timeout
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type OpsConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres | memory
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

type BlobConfig struct {
	Backend       string        `yaml:"backend"` // s3 | local
	Region        string        `yaml:"region"`
	Endpoint      string        `yaml:"endpoint"` // custom S3 endpoint (MinIO etc.)
	PathStyle     bool          `yaml:"path_style"`
	TempBucket    string        `yaml:"temp_bucket"`
	FinalBucket   string        `yaml:"final_bucket"`
	LocalDir      string        `yaml:"local_dir"`
	MaxDimension  int           `yaml:"max_dimension"` // optimizer downscales past this
	PresignTTL    time.Duration `yaml:"presign_ttl"`
	MaxFetchBytes int64         `yaml:"max_fetch_bytes"`
}

type ProviderSettings struct {
	Kind     string `yaml:"kind"` // analysis: gemini|openai|stub; editing: seedream|stub
	Disabled bool   `yaml:"disabled"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`

	Resilience resilience.Config `yaml:"resilience"`
}

type ProvidersConfig struct {
	Analysis ProviderSettings `yaml:"analysis"`
	Editing  ProviderSettings `yaml:"editing"`
}

type NotifyConfig struct {
	Kind    string        `yaml:"kind"` // webhook | log | noop
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type JobsConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"` // retention sweeper cadence
}

type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`
	Ops       OpsConfig       `yaml:"ops"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Blob      BlobConfig      `yaml:"blob"`
	Providers ProvidersConfig `yaml:"providers"`
	Notify    NotifyConfig    `yaml:"notify"`
	Jobs      JobsConfig      `yaml:"jobs"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 8
	}
	if cfg.Worker.PollTimeout <= 0 {
		cfg.Worker.PollTimeout = 5 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Ops.Port <= 0 {
		cfg.Ops.Port = 8081
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Redis.Queue == "" {
		cfg.Redis.Queue = "pipeline:uploads"
	}
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = "s3"
	}
	if cfg.Blob.Region == "" {
		cfg.Blob.Region = "us-east-1"
	}
	if cfg.Blob.TempBucket == "" {
		cfg.Blob.TempBucket = "photo-temp"
	}
	if cfg.Blob.FinalBucket == "" {
		cfg.Blob.FinalBucket = "photo-final"
	}
	if cfg.Blob.LocalDir == "" {
		cfg.Blob.LocalDir = "./data/blobs"
	}
	if cfg.Blob.MaxDimension <= 0 {
		cfg.Blob.MaxDimension = 2048
	}
	if cfg.Blob.PresignTTL <= 0 {
		cfg.Blob.PresignTTL = 15 * time.Minute
	}
	if cfg.Blob.MaxFetchBytes <= 0 {
		cfg.Blob.MaxFetchBytes = 32 << 20
	}
	if cfg.Providers.Analysis.Kind == "" {
		cfg.Providers.Analysis.Kind = "gemini"
	}
	if cfg.Providers.Analysis.Model == "" {
		cfg.Providers.Analysis.Model = "gemini-2.5-flash"
	}
	if cfg.Providers.Editing.Kind == "" {
		cfg.Providers.Editing.Kind = "seedream"
	}
	if cfg.Providers.Editing.Model == "" {
		cfg.Providers.Editing.Model = "seedream-4-0"
	}
	if cfg.Providers.Editing.BaseURL == "" && cfg.Providers.Editing.Kind == "seedream" {
		cfg.Providers.Editing.BaseURL = "https://ark.ap-southeast.bytepluses.com/api/v3"
	}
	if cfg.Notify.Kind == "" {
		cfg.Notify.Kind = "log"
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = time.Hour
	}

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
	switch cfg.Blob.Backend {
	case "s3", "local":
	default:
		return nil, fmt.Errorf("unknown blob.backend %q", cfg.Blob.Backend)
	}
	if err := validateProvider("analysis", cfg.Providers.Analysis); err != nil {
		return nil, err
	}
	if err := validateProvider("editing", cfg.Providers.Editing); err != nil {
		return nil, err
	}
	if cfg.Notify.Kind == "webhook" && cfg.Notify.URL == "" {
		return nil, errors.New("notify.url is required for the webhook sink")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func validateProvider(stage string, p ProviderSettings) error {
	if p.Disabled || p.Kind == "stub" {
		return nil
	}
	if p.APIKey == "" {
		return fmt.Errorf("providers.%s.api_key is required for kind %q", stage, p.Kind)
	}
	return nil
}
