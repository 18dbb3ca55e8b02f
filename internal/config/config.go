package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds the application credentials and platform endpoints.
type DiscordConfig struct {
	ApplicationID string `yaml:"app_id" env:"DISCORD_APP_ID"`
	PublicKey     string `yaml:"public_key" env:"DISCORD_APP_PUBLIC_KEY"`
	BotToken      string `yaml:"bot_token" env:"DISCORD_BOT_TOKEN"`
	// OwnerIDs may run restricted commands. Empty denies everyone.
	OwnerIDs   []string `yaml:"owner_ids" env:"DISCORD_BOT_OWNER_IDS" envSeparator:","`
	DevGuildID string   `yaml:"dev_guild_id" env:"DISCORD_DEV_GUILD_ID"`
	APIBaseURL string   `yaml:"api_base_url" env:"DISCORD_API_BASE_URL"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"HAXXOR_RATE_LIMIT_ENABLED"`
	RequestsPerMinute int  `yaml:"requests_per_minute" env:"HAXXOR_RATE_LIMIT_RPM"`
	BurstSize         int  `yaml:"burst_size" env:"HAXXOR_RATE_LIMIT_BURST"`
}

type CDNConfig struct {
	Enabled bool `yaml:"enabled" env:"HAXXOR_CDN_ENABLED"`
	// SyncSchedule is a 5-field cron expression; empty disables the sync job.
	SyncSchedule string `yaml:"sync_schedule" env:"HAXXOR_CDN_SYNC_SCHEDULE"`
	MaxBytes     int64  `yaml:"max_bytes" env:"HAXXOR_CDN_MAX_BYTES"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" env:"HAXXOR_OTEL_ENABLED"`
	Exporter    string  `yaml:"exporter" env:"HAXXOR_OTEL_EXPORTER"`
	Endpoint    string  `yaml:"endpoint" env:"HAXXOR_OTEL_ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"HAXXOR_OTEL_SERVICE_NAME"`
	SampleRate  float64 `yaml:"sample_rate" env:"HAXXOR_OTEL_SAMPLE_RATE"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	BindAddr      string `yaml:"bind_addr" env:"HAXXOR_BIND_ADDR"`
	Port          string `yaml:"-" env:"PORT"`
	LogLevel      string `yaml:"log_level" env:"HAXXOR_LOG_LEVEL"`
	DBPath        string `yaml:"db_path" env:"HAXXOR_DB_PATH"`
	PublicBaseURL string `yaml:"public_base_url" env:"HAXXOR_PUBLIC_BASE_URL"`

	// ReplyTimeoutMS bounds the wait for the first reply. The platform
	// drops interactions that are not answered within three seconds.
	ReplyTimeoutMS int `yaml:"reply_timeout_ms" env:"HAXXOR_REPLY_TIMEOUT_MS"`
	// FollowupTimeoutSeconds bounds work after the reply, matching the
	// lifetime of an interaction token.
	FollowupTimeoutSeconds int `yaml:"followup_timeout_seconds" env:"HAXXOR_FOLLOWUP_TIMEOUT_SECONDS"`
	DrainTimeoutSeconds    int `yaml:"drain_timeout_seconds" env:"HAXXOR_DRAIN_TIMEOUT_SECONDS"`

	Discord   DiscordConfig   `yaml:"discord"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CDN       CDNConfig       `yaml:"cdn"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// Fingerprint returns a stable hash of the non-secret settings.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "bind=%s|log=%s|app=%s|owners=%d|reply=%d|followup=%d|rl=%v/%d/%d|cdn=%v/%s",
		c.BindAddr, c.LogLevel, c.Discord.ApplicationID, len(c.Discord.OwnerIDs),
		c.ReplyTimeoutMS, c.FollowupTimeoutSeconds,
		c.RateLimit.Enabled, c.RateLimit.RequestsPerMinute, c.RateLimit.BurstSize,
		c.CDN.Enabled, c.CDN.SyncSchedule)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

func (c Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMS) * time.Millisecond
}

func (c Config) FollowupTimeout() time.Duration {
	return time.Duration(c.FollowupTimeoutSeconds) * time.Second
}

func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// InviteURL is the OAuth2 authorize URL that adds the bot to a guild.
func (c Config) InviteURL() string {
	return "https://discord.com/api/oauth2/authorize?client_id=" + c.Discord.ApplicationID + "&scope=applications.commands"
}

func defaultConfig() Config {
	return Config{
		BindAddr:               "127.0.0.1:3000",
		LogLevel:               "info",
		ReplyTimeoutMS:         3000,
		FollowupTimeoutSeconds: int((15 * time.Minute).Seconds()),
		DrainTimeoutSeconds:    10,
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			BurstSize:         60,
		},
		CDN: CDNConfig{
			Enabled:  true,
			MaxBytes: 256 * 1024,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "none",
			ServiceName: "haxxor-bunny",
			SampleRate:  1,
		},
	}
}

func HomeDir() string {
	if override := os.Getenv("HAXXOR_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".haxxor-bunny")
}

// Load reads defaults, then config.yaml, then the environment.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create haxxor home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	// Hosting platforms hand out a port; it wins unless the bind address
	// was set explicitly.
	if cfg.Port != "" && os.Getenv("HAXXOR_BIND_ADDR") == "" {
		cfg.BindAddr = ":" + cfg.Port
	}
	return nil
}

func normalize(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.HomeDir, "haxxor.db")
	}
	if cfg.ReplyTimeoutMS <= 0 {
		cfg.ReplyTimeoutMS = 3000
	}
	if cfg.FollowupTimeoutSeconds <= 0 {
		cfg.FollowupTimeoutSeconds = int((15 * time.Minute).Seconds())
	}
	if cfg.DrainTimeoutSeconds <= 0 {
		cfg.DrainTimeoutSeconds = 10
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.BurstSize <= 0 {
		cfg.RateLimit.BurstSize = 60
	}
	if cfg.CDN.MaxBytes <= 0 {
		cfg.CDN.MaxBytes = 256 * 1024
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.Discord.PublicKey = strings.TrimSpace(cfg.Discord.PublicKey)

	owners := cfg.Discord.OwnerIDs[:0]
	for _, id := range cfg.Discord.OwnerIDs {
		if id = strings.TrimSpace(id); id != "" {
			owners = append(owners, id)
		}
	}
	cfg.Discord.OwnerIDs = owners
}

// ValidateServe checks the settings needed to accept webhooks.
func (c Config) ValidateServe() error {
	var errs []error
	if err := c.ValidateREST(); err != nil {
		errs = append(errs, err)
	}
	key, err := hex.DecodeString(c.Discord.PublicKey)
	switch {
	case c.Discord.PublicKey == "":
		errs = append(errs, errors.New("discord.public_key is required"))
	case err != nil || len(key) != 32:
		errs = append(errs, errors.New("discord.public_key must be a 64 character hex ed25519 key"))
	}
	return errors.Join(errs...)
}

// ValidateREST checks the settings needed to call the REST API.
func (c Config) ValidateREST() error {
	var errs []error
	if c.Discord.ApplicationID == "" {
		errs = append(errs, errors.New("discord.app_id is required"))
	}
	if c.Discord.BotToken == "" {
		errs = append(errs, errors.New("discord.bot_token is required"))
	}
	return errors.Join(errs...)
}
