// Package config loads service configuration from config.yaml and ROBIN_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use "__", so
// ROBIN_AGENT__MAX_ROUNDS sets agent.max_rounds.
const EnvPrefix = "ROBIN_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Auth    AuthConfig    `koanf:"auth"`
	Gemini  GeminiConfig  `koanf:"gemini"`
	Agent   AgentConfig   `koanf:"agent"`
	Storage StorageConfig `koanf:"storage"`
	Blob    BlobConfig    `koanf:"blob"`
	Facts   FactsConfig   `koanf:"facts"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	CORS           CORSConfig    `koanf:"cors"`
}

type CORSConfig struct {
	AllowedHeaders []string `koanf:"allowed_headers"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty decodes tokens without
	// verification, which is only suitable for local development.
	JWTSecret string `koanf:"jwt_secret"`
}

type GeminiConfig struct {
	APIKey         string `koanf:"api_key"`
	DefaultModel   string `koanf:"default_model"`
	ImageModel     string `koanf:"image_model"`
	ReviewModel    string `koanf:"review_model"`
	DiagnosisModel string `koanf:"diagnosis_model"`
}

type AgentConfig struct {
	// MaxRounds caps model rounds per request; 0 disables the cap.
	MaxRounds          int           `koanf:"max_rounds"`
	ModelCallTimeout   time.Duration `koanf:"model_call_timeout"`
	HistoryWindow      int           `koanf:"history_window"`
	HistoryTokenBudget int           `koanf:"history_token_budget"`
	PingInterval       time.Duration `koanf:"ping_interval"`
	FilePollTimeout    time.Duration `koanf:"file_poll_timeout"`
	FilePollInterval   time.Duration `koanf:"file_poll_interval"`
	// AllowPrivateFetch lets attachment fetches reach loopback and private
	// addresses, e.g. a local object store.
	AllowPrivateFetch  bool          `koanf:"allow_private_fetch"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres, memory
	DSN    string `koanf:"dsn"`
}

type BlobConfig struct {
	Driver          string        `koanf:"driver"` // s3, memory
	Region          string        `koanf:"region"`
	Endpoint        string        `koanf:"endpoint"`
	PublicBaseURL   string        `koanf:"public_base_url"`
	AccessKeyID     string        `koanf:"access_key_id"`
	SecretAccessKey string        `koanf:"secret_access_key"`
	UsePathStyle    bool          `koanf:"use_path_style"`
	UploadsBucket   string        `koanf:"uploads_bucket"`
	GeneratedBucket string        `koanf:"generated_bucket"`
	SignedURLTTL    time.Duration `koanf:"signed_url_ttl"`
}

type FactsConfig struct {
	Model  string `koanf:"model"`
	APIKey string `koanf:"api_key"`
}

var defaults = map[string]any{
	"server.port":                "8080",
	"server.request_timeout":     "10m",
	"log.level":                  "info",
	"gemini.default_model":       "gemini-2.5-flash",
	"gemini.image_model":         "gemini-2.0-flash-preview-image-generation",
	"gemini.review_model":        "gemini-2.5-flash",
	"gemini.diagnosis_model":     "gemini-2.5-pro",
	"agent.max_rounds":           "25",
	"agent.model_call_timeout":   "2m",
	"agent.history_window":       "4",
	"agent.history_token_budget": "12000",
	"agent.ping_interval":        "1s",
	"agent.file_poll_timeout":    "60s",
	"agent.file_poll_interval":   "1s",
	"storage.driver":             "sqlite",
	"storage.dsn":                "./data/robin.db",
	"blob.driver":                "s3",
	"blob.region":                "us-east-1",
	"blob.uploads_bucket":        "user-uploads",
	"blob.generated_bucket":      "user-files",
	"blob.signed_url_ttl":        "1h",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (a missing file is not an error), applies ROBIN_ overrides
// and defaults, and expands ${VAR} references in secrets.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Gemini.APIKey = substituteEnvVars(cfg.Gemini.APIKey)
	cfg.Facts.APIKey = substituteEnvVars(cfg.Facts.APIKey)
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	cfg.Blob.AccessKeyID = substituteEnvVars(cfg.Blob.AccessKeyID)
	cfg.Blob.SecretAccessKey = substituteEnvVars(cfg.Blob.SecretAccessKey)

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Facts.APIKey == "" {
		cfg.Facts.APIKey = cfg.Gemini.APIKey
	}
	if cfg.Facts.Model == "" {
		cfg.Facts.Model = cfg.Gemini.DefaultModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver %q: want sqlite, postgres or memory", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("blob.driver %q: want s3 or memory", c.Blob.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Agent.MaxRounds < 0 {
		return fmt.Errorf("agent.max_rounds must not be negative")
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
