package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"careerstack/apps/converter/internal/htmlpatch"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8080"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	TempDir         string `envconfig:"TEMP_DIR"`
	TemplateDir     string `envconfig:"TEMPLATE_DIR" default:"/app/templates"`
	HTMLStylePreset string `envconfig:"HTML_STYLE_PRESET" default:"readable"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// Office process
	UnoserverPath              string `envconfig:"UNOSERVER_PATH" default:"unoserver"`
	UnoserverPort              int    `envconfig:"UNOSERVER_PORT" default:"2003"`
	SofficePath                string `envconfig:"SOFFICE_PATH" default:"soffice"`
	SofficeHost                string `envconfig:"SOFFICE_HOST" default:"127.0.0.1"`
	SofficePort                int    `envconfig:"SOFFICE_PORT" default:"2002"`
	SofficeStartupDelaySeconds int    `envconfig:"SOFFICE_STARTUP_DELAY_SECONDS" default:"5"`
	SofficeKillGraceSeconds    int    `envconfig:"SOFFICE_KILL_GRACE_SECONDS" default:"2"`
	UnoconvertPath             string `envconfig:"UNOCONVERT_PATH" default:"unoconvert"`
	ConversionTimeoutSeconds   int    `envconfig:"CONVERSION_TIMEOUT_SECONDS" default:"120"`

	// Rate limiting on /convert/*
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// History
	EnableHistory bool   `envconfig:"ENABLE_HISTORY" default:"false"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"careerstack"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"careerstack"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Events
	EnableEvents bool   `envconfig:"ENABLE_EVENTS" default:"false"`
	NSQDHost     string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP     string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SofficePath == "" {
		return fmt.Errorf("%w: SOFFICE_PATH", ErrMissingRequired)
	}
	if c.UnoconvertPath == "" {
		return fmt.Errorf("%w: UNOCONVERT_PATH", ErrMissingRequired)
	}
	if c.UnoserverPath == "" {
		return fmt.Errorf("%w: UNOSERVER_PATH", ErrMissingRequired)
	}
	if !validPort(c.SofficePort) {
		return fmt.Errorf("%w: SOFFICE_PORT %d", ErrInvalid, c.SofficePort)
	}
	if !validPort(c.UnoserverPort) {
		return fmt.Errorf("%w: UNOSERVER_PORT %d", ErrInvalid, c.UnoserverPort)
	}
	if c.UnoserverPort == c.SofficePort {
		return fmt.Errorf("%w: UNOSERVER_PORT and SOFFICE_PORT must differ", ErrInvalid)
	}
	if _, err := htmlpatch.ParsePreset(c.HTMLStylePreset); err != nil {
		return fmt.Errorf("%w: HTML_STYLE_PRESET: %v", ErrInvalid, err)
	}
	if c.EnableHistory {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}
	if c.EnableEvents && c.NSQDHost == "" {
		return fmt.Errorf("%w: NSQD_HOST", ErrMissingRequired)
	}
	return nil
}

func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.SofficeStartupDelaySeconds) * time.Second
}

func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.SofficeKillGraceSeconds) * time.Second
}

func (c *Config) ConversionTimeout() time.Duration {
	return time.Duration(c.ConversionTimeoutSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.BootstrapRetryDelaySeconds) * time.Second
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}
