package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	GinMode         string        `mapstructure:"gin_mode"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadConfig struct {
	Dir        string   `mapstructure:"dir"`
	FieldNames []string `mapstructure:"field_names"`
	MaxBytes   int64    `mapstructure:"max_bytes"`
	Keep       bool     `mapstructure:"keep"`
}

type VisionConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	CredentialFiles []string      `mapstructure:"credential_files"`
	MaxResults      int           `mapstructure:"max_results"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig is optional. An empty DSN disables the audit log.
type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load reads an optional YAML file and applies PRIVLENS_* environment
// overrides on top of the defaults. An empty path skips the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("privlens")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "PRIVLENS_SERVER_PORT", "PORT")
	_ = v.BindEnv("vision.api_key", "PRIVLENS_VISION_API_KEY", "GOOGLE_VISION_API_KEY")
	_ = v.BindEnv("server.gin_mode", "PRIVLENS_SERVER_GIN_MODE", "GIN_MODE")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	// GOOGLE_APPLICATION_CREDENTIALS is the conventional location and is
	// probed before the configured candidates.
	if adc := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); adc != "" {
		cfg.Vision.CredentialFiles = append([]string{adc}, cfg.Vision.CredentialFiles...)
	}

	cfg.Vision.Provider = strings.ToLower(strings.TrimSpace(cfg.Vision.Provider))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "privlens")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.port", "5000")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.field_names", []string{"image", "file"})
	v.SetDefault("upload.max_bytes", int64(10<<20))
	v.SetDefault("upload.keep", false)

	v.SetDefault("vision.provider", ProviderMock)
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.credential_files", []string{
		"./google-credentials.json",
		"./credentials/google-vision.json",
		"~/.config/gcloud/application_default_credentials.json",
	})
	v.SetDefault("vision.max_results", 50)
	v.SetDefault("vision.timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.retention_days", 30)

	v.SetDefault("auth.jwt_secret", "")
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	switch c.Vision.Provider {
	case ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("vision.provider must be %q or %q, got %q", ProviderGoogle, ProviderMock, c.Vision.Provider)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if len(c.Upload.FieldNames) == 0 {
		return fmt.Errorf("upload.field_names must not be empty")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir is required")
	}
	return nil
}

func (c *Config) AuditEnabled() bool {
	return c.Database.DSN != ""
}
