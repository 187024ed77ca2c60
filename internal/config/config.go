// Package config loads and validates circular-watch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config captures all run configuration knobs loaded via Viper.
// It is built once at process start and passed by value; nothing mutates it during a run.
type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	WorkDir    string           `mapstructure:"workdir" validate:"required"`
	State      StateConfig      `mapstructure:"state"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Google     GoogleConfig     `mapstructure:"google"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SourceConfig describes the regulator site being watched.
type SourceConfig struct {
	IndexURL         string   `mapstructure:"index_url" validate:"required,url"`
	BaseURL          string   `mapstructure:"base_url" validate:"required,url"`
	Referer          string   `mapstructure:"referer"`
	DetailMarker     string   `mapstructure:"detail_marker" validate:"required"`
	DisallowedMarker string   `mapstructure:"disallowed_marker"`
	FallbackPatterns []string `mapstructure:"fallback_patterns" validate:"max=3,dive,required"`
}

// HeadlessConfig configures the rendering client.
type HeadlessConfig struct {
	ExecPath       string `mapstructure:"exec_path"`
	UserAgent      string `mapstructure:"user_agent"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds" validate:"gt=0"`
	IndexSettleMs  int    `mapstructure:"index_settle_ms" validate:"gte=0"`
	DetailSettleMs int    `mapstructure:"detail_settle_ms" validate:"gte=0"`
}

// HTTPConfig configures header-only validation and downloads.
type HTTPConfig struct {
	UserAgent              string  `mapstructure:"user_agent"`
	ValidateTimeoutSeconds int     `mapstructure:"validate_timeout_seconds" validate:"gt=0"`
	DownloadTimeoutSeconds int     `mapstructure:"download_timeout_seconds" validate:"gt=0"`
	RequestsPerSecond      float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst                  int     `mapstructure:"burst" validate:"gte=0"`
}

// StateConfig selects where the last processed circular is recorded.
type StateConfig struct {
	Backend          string `mapstructure:"backend" validate:"oneof=file postgres"`
	Path             string `mapstructure:"path"`
	LockPath         string `mapstructure:"lock_path"`
	LockStaleMinutes int    `mapstructure:"lock_stale_minutes" validate:"gte=0"`
	DSN              string `mapstructure:"dsn"`
	Table            string `mapstructure:"table"`
}

// StorageConfig selects the archive backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=local gcs drive"`
	LocalDir      string `mapstructure:"local_dir"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	Prefix        string `mapstructure:"prefix"`
	DriveFolderID string `mapstructure:"drive_folder_id"`
}

// SummarizerConfig configures checklist generation.
type SummarizerConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// NotifyConfig configures stakeholder notification.
type NotifyConfig struct {
	Backend    string   `mapstructure:"backend" validate:"oneof=none gmail pubsub both"`
	Sender     string   `mapstructure:"sender"`
	Recipients []string `mapstructure:"recipients" validate:"dive,email"`
	Signature  []string `mapstructure:"signature"`
	ProjectID  string   `mapstructure:"project_id"`
	Topic      string   `mapstructure:"topic"`
}

// GoogleConfig points at the OAuth client and token files used by Drive and Gmail.
type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

// MetricsConfig controls Prometheus push after batch runs.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ServerConfig controls the optional HTTP trigger service.
type ServerConfig struct {
	Port   int    `mapstructure:"port" validate:"gt=0"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the run log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CIRCULAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultUserAgent mimics a desktop browser; the source site rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.index_url", "https://rbi.org.in/Scripts/BS_CircularIndexDisplay.aspx")
	v.SetDefault("source.base_url", "https://rbi.org.in/Scripts/")
	v.SetDefault("source.referer", "https://rbi.org.in/")
	v.SetDefault("source.detail_marker", "BS_CircularIndexDisplay.aspx?Id=")
	v.SetDefault("source.disallowed_marker", "utkarsh")
	v.SetDefault("source.fallback_patterns", []string{
		"https://rbidocs.rbi.org.in/rdocs/content/pdfs/{id}.pdf",
		"https://www.rbi.org.in/Scripts/BS_PressReleaseDisplay.aspx?prid={id}",
		"https://rbidocs.rbi.org.in/rdocs/circulars/{id}.pdf",
	})
	v.SetDefault("headless.user_agent", DefaultUserAgent)
	v.SetDefault("headless.nav_timeout_seconds", 10)
	v.SetDefault("headless.index_settle_ms", 3000)
	v.SetDefault("headless.detail_settle_ms", 2000)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.validate_timeout_seconds", 10)
	v.SetDefault("http.download_timeout_seconds", 30)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("workdir", ".")
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", "last_circular.txt")
	v.SetDefault("state.lock_path", "circularwatch.lock")
	v.SetDefault("state.lock_stale_minutes", 60)
	v.SetDefault("state.table", "circular_state")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "archive")
	v.SetDefault("storage.prefix", "RBI")
	v.SetDefault("summarizer.enabled", true)
	v.SetDefault("summarizer.model", "gemini-2.5-flash")
	v.SetDefault("summarizer.timeout_seconds", 120)
	v.SetDefault("notify.backend", "none")
	v.SetDefault("notify.signature", []string{"Regards", "Compliance Desk"})
	v.SetDefault("google.credentials_file", "credentials.json")
	v.SetDefault("google.token_file", "token.json")
	v.SetDefault("metrics.job", "circularwatch")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "circularwatch.log")

	// Keys without a useful default are still registered so env overrides reach Unmarshal.
	for _, key := range []string{
		"headless.exec_path",
		"state.dsn",
		"storage.gcs_bucket",
		"storage.drive_folder_id",
		"summarizer.api_key",
		"notify.sender",
		"notify.project_id",
		"notify.topic",
		"metrics.pushgateway_url",
		"server.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("notify.recipients", []string{})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate enforces required values and cross-field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.State.Backend == "file" && c.State.Path == "" {
		return fmt.Errorf("state.path must be set when state.backend is file")
	}
	if c.State.Backend == "postgres" && c.State.DSN == "" {
		return fmt.Errorf("state.dsn must be set when state.backend is postgres")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
	}
	if c.Storage.Backend == "drive" && c.Storage.DriveFolderID == "" {
		return fmt.Errorf("storage.drive_folder_id must be set when storage.backend is drive")
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir must be set when storage.backend is local")
	}
	mail := c.Notify.Backend == "gmail" || c.Notify.Backend == "both"
	events := c.Notify.Backend == "pubsub" || c.Notify.Backend == "both"
	if mail && (c.Notify.Sender == "" || len(c.Notify.Recipients) == 0) {
		return fmt.Errorf("notify.sender and notify.recipients must be set when notify.backend is %s", c.Notify.Backend)
	}
	if events && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set when notify.backend is %s", c.Notify.Backend)
	}
	return nil
}

// NavTimeout is the bounded wait for the rendered body to appear.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// IndexSettle is the post-readiness delay used on the index page.
func (c Config) IndexSettle() time.Duration {
	return time.Duration(c.Headless.IndexSettleMs) * time.Millisecond
}

// DetailSettle is the post-readiness delay used on detail pages.
func (c Config) DetailSettle() time.Duration {
	return time.Duration(c.Headless.DetailSettleMs) * time.Millisecond
}

// ValidateTimeout bounds each header-only validation request.
func (c Config) ValidateTimeout() time.Duration {
	return time.Duration(c.HTTP.ValidateTimeoutSeconds) * time.Second
}

// DownloadTimeout bounds each document transfer.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.HTTP.DownloadTimeoutSeconds) * time.Second
}

// LockStaleAfter is the age after which a leftover run lock is broken.
func (c Config) LockStaleAfter() time.Duration {
	return time.Duration(c.State.LockStaleMinutes) * time.Minute
}

// SummarizerTimeout bounds the checklist generation call.
func (c Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}
