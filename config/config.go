// Package config loads service settings from the environment, an optional
// .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Artifact sources
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds the settings of the prediction service
type Config struct {
	AppName string
	Version string
	Port    int

	// APIKey is the shared secret callers must present
	APIKey string

	ArtifactSource string
	ArtifactDir    string
	ModelName      string
	DatabaseURL    string

	LogLevel        string
	OTELEnabled     bool
	OTELServiceName string
	ErrorSampleRate int

	RequestTimeout time.Duration
}

// Title is the heading shown on the form page
func (c *Config) Title() string {
	return fmt.Sprintf("%s v%s", c.AppName, c.Version)
}

// String renders the config without the API key
func (c Config) String() string {
	c.APIKey = "[REDACTED]"
	if c.DatabaseURL != "" {
		c.DatabaseURL = "[REDACTED]"
	}
	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}

// Load reads .env (if present), config.yaml (if present) and the environment
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from v after applying defaults and env overrides
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppName:         v.GetString("app_name"),
		Version:         v.GetString("version"),
		Port:            v.GetInt("port"),
		APIKey:          v.GetString("api_key"),
		ArtifactSource:  strings.ToLower(v.GetString("artifact_source")),
		ArtifactDir:     v.GetString("artifact_dir"),
		ModelName:       v.GetString("model_name"),
		DatabaseURL:     v.GetString("database_url"),
		LogLevel:        v.GetString("log_level"),
		OTELEnabled:     v.GetBool("otel_enabled"),
		OTELServiceName: v.GetString("otel_service_name"),
		ErrorSampleRate: v.GetInt("error_sample_rate"),
		RequestTimeout:  v.GetDuration("request_timeout"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = v.GetString("secret_key_token")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "Churn Detection")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("artifact_source", SourceFile)
	v.SetDefault("artifact_dir", "models")
	v.SetDefault("model_name", "churn-forest")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_service_name", "churn-service")
	v.SetDefault("error_sample_rate", 1)
	v.SetDefault("request_timeout", 30*time.Second)
}

// Validate checks that required settings are present and consistent
func (c *Config) Validate() error {
	var errs []string

	if c.APIKey == "" {
		errs = append(errs, "API_KEY (or SECRET_KEY_TOKEN) is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT %d is out of range", c.Port))
	}
	if c.ModelName == "" {
		errs = append(errs, "MODEL_NAME is required")
	}
	switch c.ArtifactSource {
	case SourceFile:
		if c.ArtifactDir == "" {
			errs = append(errs, "ARTIFACT_DIR is required for file artifacts")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for postgres artifacts")
		}
	default:
		errs = append(errs, fmt.Sprintf("ARTIFACT_SOURCE %q must be %s or %s", c.ArtifactSource, SourceFile, SourcePostgres))
	}
	if c.ErrorSampleRate < 1 {
		errs = append(errs, "ERROR_SAMPLE_RATE must be at least 1")
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or the module root
func loadEnvFile() {
	paths := []string{".env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
