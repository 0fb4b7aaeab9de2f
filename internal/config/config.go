package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hegde-atri/chaussettes/internal/netsetup"
	"github.com/hegde-atri/chaussettes/internal/sshtunnel"
	"github.com/hegde-atri/chaussettes/internal/types"
)

const (
	DefaultLogLevel     = "debug"
	DefaultProbeTarget  = "example.com:80"
	DefaultProbeTimeout = 5 * time.Second

	envPrefix = "CHAUSSETTES_"
)

// Config holds the application settings. Zero values are filled by
// ApplyDefaults.
type Config struct {
	ServersFile       string        `yaml:"servers_file"`
	LogFile           string        `yaml:"log_file"`
	LogLevel          string        `yaml:"log_level"`
	SSHBinary         string        `yaml:"ssh_binary"`
	GracePeriod       time.Duration `yaml:"grace_period"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
	KeepAliveInterval int           `yaml:"keepalive_interval"`
	KeepAliveCountMax int           `yaml:"keepalive_count_max"`
	FallbackService   string        `yaml:"fallback_service"`
	ProbeTarget       string        `yaml:"probe_target"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
}

// Dir is ~/.config/chaussettes
func Dir() string {
	return types.ExpandHome("~/.config/chaussettes")
}

// DefaultPath is the config file read when none is given
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultServersFile is where saved servers live
func DefaultServersFile() string {
	return filepath.Join(Dir(), "servers.yml")
}

// DefaultLogFile is the rotating application log
func DefaultLogFile() string {
	return types.ExpandHome("~/.local/share/chaussettes/logs/chaussettes.log")
}

// Load reads the YAML config file at path, a missing file meaning "all
// defaults", then applies CHAUSSETTES_* environment overrides and defaults.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	ApplyDefaults(&cfg)
	return cfg, Validate(cfg)
}

// LoadOrPrompt is Load for a path the user asked for explicitly: a missing
// file is an error with a hint instead of silently using defaults.
func LoadOrPrompt(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config file not found at %s\n\nCreate it, or omit --config to use %s", path, DefaultPath())
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(path)
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Missing files are skipped; variables already set
// are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from CHAUSSETTES_* variables
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVERS_FILE":     &cfg.ServersFile,
		"LOG_FILE":         &cfg.LogFile,
		"LOG_LEVEL":        &cfg.LogLevel,
		"SSH_BINARY":       &cfg.SSHBinary,
		"FALLBACK_SERVICE": &cfg.FallbackService,
		"PROBE_TARGET":     &cfg.ProbeTarget,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"GRACE_PERIOD":  &cfg.GracePeriod,
		"STOP_TIMEOUT":  &cfg.StopTimeout,
		"PROBE_TIMEOUT": &cfg.ProbeTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"KEEPALIVE_INTERVAL":  &cfg.KeepAliveInterval,
		"KEEPALIVE_COUNT_MAX": &cfg.KeepAliveCountMax,
	}
	for key, dst := range ints {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// ApplyDefaults fills in default values when empty
func ApplyDefaults(cfg *Config) {
	if cfg.ServersFile == "" {
		cfg.ServersFile = DefaultServersFile()
	}
	cfg.ServersFile = types.ExpandHome(cfg.ServersFile)
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile()
	}
	cfg.LogFile = types.ExpandHome(cfg.LogFile)
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.SSHBinary == "" {
		cfg.SSHBinary = sshtunnel.DefaultBinary
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = sshtunnel.DefaultGracePeriod
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = sshtunnel.DefaultStopTimeout
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = sshtunnel.DefaultKeepAliveInterval
	}
	if cfg.KeepAliveCountMax == 0 {
		cfg.KeepAliveCountMax = sshtunnel.DefaultKeepAliveCountMax
	}
	if cfg.FallbackService == "" {
		cfg.FallbackService = netsetup.DefaultFallbackService
	}
	if cfg.ProbeTarget == "" {
		cfg.ProbeTarget = DefaultProbeTarget
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
}

// Validate rejects values that defaults cannot repair
func Validate(cfg Config) error {
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.GracePeriod < 0 || cfg.StopTimeout < 0 || cfg.ProbeTimeout < 0 {
		return fmt.Errorf("grace_period, stop_timeout and probe_timeout must be positive")
	}
	// bounded waits keep the UI responsive
	if cfg.GracePeriod > 30*time.Second || cfg.StopTimeout > 30*time.Second {
		return fmt.Errorf("grace_period and stop_timeout must not exceed 30s")
	}
	if cfg.KeepAliveInterval < 0 || cfg.KeepAliveCountMax < 0 {
		return fmt.Errorf("keepalive_interval and keepalive_count_max must be positive")
	}
	return nil
}

// TunnelOptions maps the config onto supervisor options
func (c Config) TunnelOptions() sshtunnel.Options {
	return sshtunnel.Options{
		Binary:            c.SSHBinary,
		GracePeriod:       c.GracePeriod,
		StopTimeout:       c.StopTimeout,
		KeepAliveInterval: c.KeepAliveInterval,
		KeepAliveCountMax: c.KeepAliveCountMax,
	}
}
