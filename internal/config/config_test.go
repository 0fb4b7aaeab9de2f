package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hegde-atri/chaussettes/internal/netsetup"
	"github.com/hegde-atri/chaussettes/internal/sshtunnel"
)

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.ServersFile == "" || cfg.LogFile == "" {
		t.Fatalf("paths not set: %+v", cfg)
	}
	if cfg.GracePeriod != sshtunnel.DefaultGracePeriod || cfg.StopTimeout != sshtunnel.DefaultStopTimeout {
		t.Fatalf("waits=%s/%s", cfg.GracePeriod, cfg.StopTimeout)
	}
	if cfg.FallbackService != netsetup.DefaultFallbackService {
		t.Fatalf("fallback=%q", cfg.FallbackService)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SSHBinary != sshtunnel.DefaultBinary {
		t.Fatalf("ssh_binary=%q", cfg.SSHBinary)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `servers_file: /tmp/servers.yml
log_level: info
grace_period: 1500ms
stop_timeout: 3s
fallback_service: Ethernet
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServersFile != "/tmp/servers.yml" || cfg.LogLevel != "info" || cfg.FallbackService != "Ethernet" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.GracePeriod != 1500*time.Millisecond || cfg.StopTimeout != 3*time.Second {
		t.Fatalf("waits=%s/%s", cfg.GracePeriod, cfg.StopTimeout)
	}
	opts := cfg.TunnelOptions()
	if opts.GracePeriod != cfg.GracePeriod || opts.Binary != "ssh" {
		t.Fatalf("opts=%+v", opts)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: chatty\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadOrPrompt_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadOrPrompt(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("err=%v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"CHAUSSETTES_LOG_LEVEL":          "warn",
		"CHAUSSETTES_GRACE_PERIOD":       "500ms",
		"CHAUSSETTES_KEEPALIVE_INTERVAL": "10",
		"CHAUSSETTES_SSH_BINARY":         "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Config{SSHBinary: "/usr/local/bin/ssh"}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.GracePeriod != 500*time.Millisecond || cfg.KeepAliveInterval != 10 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.SSHBinary != "/usr/local/bin/ssh" {
		t.Fatalf("empty variable overrode ssh_binary: %q", cfg.SSHBinary)
	}

	env["CHAUSSETTES_STOP_TIMEOUT"] = "soon"
	if err := ApplyEnv(&cfg, lookup); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CHAUSSETTES_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CHAUSSETTES_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CHAUSSETTES_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("env=%q", got)
	}
}
