package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basket/haxxor-bunny/internal/config"
)

const testPublicKey = "e7a1b3c9d24f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b"

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(config.ConfigPath(home), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	t.Setenv("HAXXOR_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ReplyTimeout() != 3*time.Second {
		t.Fatalf("reply timeout = %s, want 3s", cfg.ReplyTimeout())
	}
	if cfg.FollowupTimeout() != 15*time.Minute {
		t.Fatalf("followup timeout = %s, want 15m", cfg.FollowupTimeout())
	}
	if cfg.DBPath != filepath.Join(home, "haxxor.db") {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if len(cfg.Discord.OwnerIDs) != 0 {
		t.Fatalf("owners = %v, want none", cfg.Discord.OwnerIDs)
	}
	if !cfg.RateLimit.Enabled {
		t.Fatal("rate limit should default to enabled")
	}
}

func TestLoad_FromHomeYAML(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	writeConfig(t, home, `
bind_addr: 0.0.0.0:8080
reply_timeout_ms: 2500
discord:
  app_id: "42"
  public_key: `+testPublicKey+`
  bot_token: yaml-token
  owner_ids: ["100", " 200 ", ""]
cdn:
  sync_schedule: "0 */6 * * *"
`)
	t.Setenv("HAXXOR_HOME", home)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BindAddr != "0.0.0.0:8080" {
		t.Fatalf("bind addr = %q", cfg.BindAddr)
	}
	if cfg.ReplyTimeoutMS != 2500 {
		t.Fatalf("reply timeout = %d", cfg.ReplyTimeoutMS)
	}
	if got := strings.Join(cfg.Discord.OwnerIDs, ","); got != "100,200" {
		t.Fatalf("owners = %q, want 100,200", got)
	}
	if cfg.CDN.SyncSchedule != "0 */6 * * *" {
		t.Fatalf("sync schedule = %q", cfg.CDN.SyncSchedule)
	}
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe: %v", err)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	writeConfig(t, home, "discord:\n  bot_token: yaml-token\n  owner_ids: [\"1\"]\n")
	t.Setenv("HAXXOR_HOME", home)
	t.Setenv("DISCORD_BOT_TOKEN", "env-token")
	t.Setenv("DISCORD_BOT_OWNER_IDS", "10,20,30")
	t.Setenv("DISCORD_APP_ID", "777")
	t.Setenv("HAXXOR_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Discord.BotToken != "env-token" {
		t.Fatalf("bot token = %q, want env-token", cfg.Discord.BotToken)
	}
	if got := strings.Join(cfg.Discord.OwnerIDs, ","); got != "10,20,30" {
		t.Fatalf("owners = %q", got)
	}
	if cfg.Discord.ApplicationID != "777" || cfg.LogLevel != "debug" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoad_PortSetsBindAddr(t *testing.T) {
	t.Setenv("HAXXOR_HOME", filepath.Join(t.TempDir(), "home"))
	t.Setenv("PORT", "9999")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("bind addr = %q, want :9999", cfg.BindAddr)
	}

	t.Setenv("HAXXOR_BIND_ADDR", "127.0.0.1:1")
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:1" {
		t.Fatalf("explicit bind addr should win, got %q", cfg.BindAddr)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	writeConfig(t, home, "discord: [unterminated\n")
	t.Setenv("HAXXOR_HOME", home)

	if _, err := config.Load(); err == nil || !strings.Contains(err.Error(), "parse config.yaml") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidateServe(t *testing.T) {
	cfg := config.Config{}
	err := cfg.ValidateServe()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"app_id", "bot_token", "public_key is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}

	cfg.Discord = config.DiscordConfig{ApplicationID: "1", BotToken: "t", PublicKey: "zz"}
	if err := cfg.ValidateServe(); err == nil || !strings.Contains(err.Error(), "hex") {
		t.Fatalf("expected hex key error, got %v", err)
	}
	if err := cfg.ValidateREST(); err != nil {
		t.Fatalf("ValidateREST: %v", err)
	}
}

func TestFingerprint_IgnoresSecrets(t *testing.T) {
	a := config.Config{BindAddr: ":1", Discord: config.DiscordConfig{ApplicationID: "1", BotToken: "a"}}
	b := a
	b.Discord.BotToken = "b"
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint should not depend on the bot token")
	}
	b.BindAddr = ":2"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint should change with bind addr")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "# comment\nHAXXOR_TEST_A=one\nexport HAXXOR_TEST_B=\"two\"\nHAXXOR_TEST_C=three\nnot a pair\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HAXXOR_TEST_A", "")
	t.Setenv("HAXXOR_TEST_B", "")
	t.Setenv("HAXXOR_TEST_C", "preset")

	config.LoadDotEnv(path)

	if got := os.Getenv("HAXXOR_TEST_A"); got != "one" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("HAXXOR_TEST_B"); got != "two" {
		t.Errorf("B = %q", got)
	}
	if got := os.Getenv("HAXXOR_TEST_C"); got != "preset" {
		t.Errorf("C should keep its preset value, got %q", got)
	}
	config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}
