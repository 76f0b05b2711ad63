package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration. Values come from defaults,
// then an optional .env file, then AUTOCLOUDSKILL_* environment variables.
type Config struct {
	Target   TargetConfig   `mapstructure:"target"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Services ServicesConfig `mapstructure:"services"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// TargetConfig holds the automated site's entry points.
type TargetConfig struct {
	RegisterURL   string `mapstructure:"register_url"`
	SignInURL     string `mapstructure:"sign_in_url"`
	PrimaryOrigin string `mapstructure:"primary_origin"`
}

// BrowserConfig holds driver launch and context options.
type BrowserConfig struct {
	Headless   bool    `mapstructure:"headless"`
	SlowMo     float64 `mapstructure:"slow_mo_ms"`
	UserAgent  string  `mapstructure:"user_agent"`
	Locale     string  `mapstructure:"locale"`
	TimezoneID string  `mapstructure:"timezone_id"`
	ProfileDir string  `mapstructure:"profile_dir"`
	StateFile  string  `mapstructure:"state_file"`
	KeepOpen   bool    `mapstructure:"keep_open"`
}

// TimeoutConfig bounds every wait in the automation.
type TimeoutConfig struct {
	Navigation    time.Duration `mapstructure:"navigation"`
	FormWait      time.Duration `mapstructure:"form_wait"`
	ElementWait   time.Duration `mapstructure:"element_wait"`
	CaptchaSolve  time.Duration `mapstructure:"captcha_solve"`
	CaptchaPoll   time.Duration `mapstructure:"captcha_poll"`
	ConsoleOpen   time.Duration `mapstructure:"console_open"`
	KeyExtraction time.Duration `mapstructure:"key_extraction"`
	PopupResolve  time.Duration `mapstructure:"popup_resolve"`
	Operation     time.Duration `mapstructure:"operation"`
}

// ServicesConfig holds credentials and endpoints for external collaborators.
type ServicesConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	GeminiModel  string `mapstructure:"gemini_model"`
	VideoModel   string `mapstructure:"video_model"`
	ImageModel   string `mapstructure:"image_model"`
	RelayAPIKey  string `mapstructure:"relay_api_key"`
	RelayBaseURL string `mapstructure:"relay_base_url"`
	MailboxURL   string `mapstructure:"mailbox_url"`
	MailboxToken string `mapstructure:"mailbox_token"`
	IdentityURL  string `mapstructure:"identity_url"`
}

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const envPrefix = "AUTOCLOUDSKILL"

// Load - builds the configuration from defaults, .env and the environment
func Load() (*Config, error) {
	// The .env file is optional; real env vars always win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Browser.ProfileDir == "" || cfg.Browser.StateFile == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		if cfg.Browser.ProfileDir == "" {
			cfg.Browser.ProfileDir = filepath.Join(dir, "profile")
		}
		if cfg.Browser.StateFile == "" {
			cfg.Browser.StateFile = filepath.Join(dir, "session_state.json")
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.register_url", "https://www.cloudskillsboost.google/users/sign_up")
	v.SetDefault("target.sign_in_url", "https://www.cloudskillsboost.google/users/sign_in")
	v.SetDefault("target.primary_origin", "https://www.cloudskillsboost.google")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.slow_mo_ms", 100)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone_id", "America/New_York")
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.state_file", "")
	v.SetDefault("browser.keep_open", false)

	v.SetDefault("timeouts.navigation", 30*time.Second)
	v.SetDefault("timeouts.form_wait", 15*time.Second)
	v.SetDefault("timeouts.element_wait", 5*time.Second)
	v.SetDefault("timeouts.captcha_solve", 2*time.Minute)
	v.SetDefault("timeouts.captcha_poll", 500*time.Millisecond)
	v.SetDefault("timeouts.console_open", 45*time.Second)
	v.SetDefault("timeouts.key_extraction", 90*time.Second)
	v.SetDefault("timeouts.popup_resolve", 5*time.Second)
	v.SetDefault("timeouts.operation", 10*time.Minute)

	v.SetDefault("services.gemini_api_key", "")
	v.SetDefault("services.gemini_model", "gemini-2.0-flash")
	v.SetDefault("services.video_model", "veo-3.0-generate-001")
	v.SetDefault("services.image_model", "imagen-4.0-generate-001")
	v.SetDefault("services.relay_api_key", "")
	v.SetDefault("services.relay_base_url", "https://relay.firefox.com")
	v.SetDefault("services.mailbox_url", "")
	v.SetDefault("services.mailbox_token", "")
	v.SetDefault("services.identity_url", "https://randomuser.me/api/")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 7)
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "autocloudskill", "playwright")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
