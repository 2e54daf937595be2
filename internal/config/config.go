package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Inference providers
const (
	ProviderGCloud = "gcloud"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type Config struct {
	Server struct {
		Port                int      `yaml:"port"`
		CORSOrigins         []string `yaml:"corsOrigins"`
		ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
		WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
	} `yaml:"server"`

	Inference struct {
		Provider       string `yaml:"provider"`
		Endpoint       string `yaml:"endpoint"`
		APIKey         string `yaml:"apiKey"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
		Encoding       string `yaml:"encoding"`
		Model          string `yaml:"model"`
	} `yaml:"inference"`

	Uploads struct {
		MaxSizeMB         int      `yaml:"maxSizeMB"`
		MaxFiles          int      `yaml:"maxFiles"`
		AllowedExtensions []string `yaml:"allowedExtensions"`
		Concurrency       int      `yaml:"concurrency"`

		// SweepSchedule is a cron expression for dropping finished upload tasks
		SweepSchedule  string `yaml:"sweepSchedule"`
		TaskTTLMinutes int    `yaml:"taskTTLMinutes"`
	} `yaml:"uploads"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerSecond int `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Default returns a Config with every default filled in
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load baca .env (kalau ada), file config.yaml, lalu environment override.
// A missing YAML file is fine; the defaults and environment then carry everything.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Inference.Endpoint, "GCLOUD_MODEL_ENDPOINT")
	setString(&c.Inference.APIKey, "GCLOUD_API_KEY")
	setString(&c.Inference.Provider, "INFERENCE_PROVIDER")
	setString(&c.Inference.Model, "INFERENCE_MODEL")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	if err := setInt(&c.Inference.TimeoutSeconds, "INFERENCE_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	// Parse CORS origins from comma-separated env var
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, trimmed)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		// a 50MB mammogram over a slow link
		c.Server.ReadTimeoutSeconds = 120
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 60
	}
	if c.Inference.Provider == "" {
		c.Inference.Provider = ProviderGCloud
	}
	if c.Inference.TimeoutSeconds == 0 {
		c.Inference.TimeoutSeconds = 30
	}
	if c.Inference.Encoding == "" {
		c.Inference.Encoding = "json"
	}
	if c.Uploads.MaxSizeMB == 0 {
		c.Uploads.MaxSizeMB = 50
	}
	if c.Uploads.MaxFiles == 0 {
		c.Uploads.MaxFiles = 20
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = []string{".dcm", ".dicom", ".jpg", ".jpeg", ".png", ".tiff"}
	}
	if c.Uploads.Concurrency == 0 {
		c.Uploads.Concurrency = 4
	}
	if c.Uploads.SweepSchedule == "" {
		c.Uploads.SweepSchedule = "@every 10m"
	}
	if c.Uploads.TaskTTLMinutes == 0 {
		c.Uploads.TaskTTLMinutes = 60
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "bossom"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Inference.Provider {
	case ProviderGCloud:
		if c.Inference.Endpoint == "" {
			errs = append(errs, fmt.Errorf("GCLOUD_MODEL_ENDPOINT is required for the gcloud provider"))
		}
		if c.Inference.APIKey == "" {
			errs = append(errs, fmt.Errorf("GCLOUD_API_KEY is required for the gcloud provider"))
		}
	case ProviderOpenAI:
		if c.Inference.APIKey == "" {
			errs = append(errs, fmt.Errorf("inference.apiKey is required for the openai provider"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown inference provider %q", c.Inference.Provider))
	}
	if c.Inference.Encoding != "json" && c.Inference.Encoding != "multipart" {
		errs = append(errs, fmt.Errorf("unknown inference encoding %q", c.Inference.Encoding))
	}
	if c.Inference.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("inference.timeoutSeconds must be positive"))
	}
	// the analyze response is written after the inference call returns
	if c.Server.WriteTimeoutSeconds <= c.Inference.TimeoutSeconds {
		errs = append(errs, fmt.Errorf("server.writeTimeoutSeconds (%d) must exceed inference.timeoutSeconds (%d)",
			c.Server.WriteTimeoutSeconds, c.Inference.TimeoutSeconds))
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("server.readTimeoutSeconds must be positive"))
	}
	if c.Uploads.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("uploads.maxSizeMB must be positive"))
	}
	if c.Uploads.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("uploads.maxFiles must be positive"))
	}
	if _, err := cron.ParseStandard(c.Uploads.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("uploads.sweepSchedule: %w", err))
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// InferenceTimeout as a duration
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

// MaxUploadBytes as bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxSizeMB) << 20
}

// TaskTTL is how long finished upload tasks stay queryable
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.Uploads.TaskTTLMinutes) * time.Minute
}

// DatabaseEnabled reports whether the audit trail has a backing store
func (c *Config) DatabaseEnabled() bool { return c.Database.Driver != "" }

// StorageEnabled reports whether uploads can be stored
func (c *Config) StorageEnabled() bool { return c.Minio.Endpoint != "" }

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
