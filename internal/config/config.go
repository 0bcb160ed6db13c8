// Package config loads runtime configuration from the environment and the site file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the web server reads.
const EnvPrefix = "ETFSAVE_WEB_"

// Config captures runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig    `envPrefix:""`
	Data      DataConfig      `envPrefix:"DATA_"`
	Sheet     SheetConfig     `envPrefix:"SHEET_"`
	Analytics AnalyticsConfig `envPrefix:""`
	SiteFile  string          `env:"SITE_FILE" envDefault:"site.yaml"`
}

// ServerConfig configures the HTTP server and its file roots.
type ServerConfig struct {
	Port         string        `env:"PORT"`
	TemplatesDir string        `env:"TEMPLATES_DIR" envDefault:"templates"`
	PublicDir    string        `env:"PUBLIC_DIR" envDefault:"public"`
	LocalesDir   string        `env:"LOCALES_DIR" envDefault:"locales"`
	LocalesURL   string        `env:"LOCALES_URL"`
	ContentDir   string        `env:"CONTENT_DIR" envDefault:"content"`
	Dev          bool          `env:"DEV"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
}

// DataConfig locates the fee data documents. Each may be a URL or a file path.
type DataConfig struct {
	RowsURL         string        `env:"ROWS_URL" envDefault:"data/data.json"`
	UpdatedURL      string        `env:"UPDATED_URL" envDefault:"data/updated.json"`
	ChangelogURL    string        `env:"CHANGELOG_URL" envDefault:"data/changelog.json"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"10m"`
}

// SheetConfig enables the spreadsheet update endpoint when DBPath is set.
type SheetConfig struct {
	DBPath string `env:"DB_PATH"`
	// Publish installs posted result rows on the live board immediately.
	Publish bool `env:"PUBLISH"`
}

// AnalyticsConfig holds client instrumentation IDs surfaced to templates.
type AnalyticsConfig struct {
	GA4MeasurementID string `env:"GA_MEASUREMENT_ID"`
	Debug            bool   `env:"ANALYTICS_DEBUG"`
}

// ValidationError is returned when configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing or invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// ParseEnv loads target from environment variables carrying prefix.
func ParseEnv(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the web server configuration. The listen port falls back to Cloud Run's
// PORT and then 8080; DEV enables dev mode as well as ETFSAVE_WEB_DEV.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg, EnvPrefix); err != nil {
		return Config{}, err
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = strings.TrimSpace(os.Getenv("PORT"))
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if !cfg.Server.Dev && os.Getenv("DEV") != "" {
		cfg.Server.Dev = true
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing or invalid fields.
func (c Config) Validate() error {
	var bad []string
	if strings.TrimSpace(c.Server.TemplatesDir) == "" {
		bad = append(bad, EnvPrefix+"TEMPLATES_DIR")
	}
	if strings.TrimSpace(c.Data.RowsURL) == "" {
		bad = append(bad, EnvPrefix+"DATA_ROWS_URL")
	}
	if c.Data.RefreshInterval < 0 {
		bad = append(bad, EnvPrefix+"DATA_REFRESH_INTERVAL")
	}
	if c.Sheet.Publish && strings.TrimSpace(c.Sheet.DBPath) == "" {
		bad = append(bad, EnvPrefix+"SHEET_DB_PATH")
	}
	if len(bad) > 0 {
		return &ValidationError{fields: bad}
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string { return ":" + c.Server.Port }
