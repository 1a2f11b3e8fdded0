package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL  = "https://api.idealista.com/3.5"
	DefaultTokenURL = "https://api.idealista.com/oauth/token"
	DefaultTimeout  = 30 * time.Second
)

type Config struct {
	Idealista struct {
		ClientID     string        `yaml:"client_id" validate:"required"`
		ClientSecret string        `yaml:"client_secret" validate:"required"`
		BaseURL      string        `yaml:"base_url" validate:"required,url"`
		TokenURL     string        `yaml:"token_url" validate:"required,url"`
		Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	} `yaml:"idealista"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO ERROR SILENT debug info error silent"`
	} `yaml:"log"`
}

var validate = validator.New()

// LoadDotEnv loads .env files into the process environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads an optional YAML file, applies environment overrides and defaults, and validates the result.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Override with environment variables if set
	if v := os.Getenv("IDEALISTA_CLIENT_ID"); v != "" {
		cfg.Idealista.ClientID = v
	}
	if v := os.Getenv("IDEALISTA_CLIENT_SECRET"); v != "" {
		cfg.Idealista.ClientSecret = v
	}
	if v := os.Getenv("IDEALISTA_BASE_URL"); v != "" {
		cfg.Idealista.BaseURL = v
	}
	if v := os.Getenv("IDEALISTA_TOKEN_URL"); v != "" {
		cfg.Idealista.TokenURL = v
	}
	if v := os.Getenv("IDEALISTA_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid IDEALISTA_TIMEOUT value: %w", err)
		}
		cfg.Idealista.Timeout = timeout
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Set default values
	if cfg.Idealista.BaseURL == "" {
		cfg.Idealista.BaseURL = DefaultBaseURL
	}
	if cfg.Idealista.TokenURL == "" {
		cfg.Idealista.TokenURL = DefaultTokenURL
	}
	if cfg.Idealista.Timeout == 0 {
		cfg.Idealista.Timeout = DefaultTimeout
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
