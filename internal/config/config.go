package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/skylens/internal/retry"
)

// Config holds everything skylens reads from config.toml.
type Config struct {
	APIURL           string
	APIKey           string
	Timeout          time.Duration
	SlowThreshold    time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	BatchConcurrency int
	LogLevel         string
	LogFile          string
	MetricsAddr      string
	WarmInterval     time.Duration
}

const (
	defaultConfigPath    = "~/.config/skylens/config.toml"
	defaultAPIURL        = "http://127.0.0.1:5000/api"
	defaultAPIKey        = "DEMO_KEY"
	defaultTimeout       = 10 * time.Second
	defaultSlowThreshold = 2 * time.Second
	defaultMaxRetries    = 2
	defaultRetryDelay    = time.Second
	defaultLogLevel      = "info"
	defaultLogFile       = "~/.local/share/skylens/skylens.log"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:        defaultAPIURL,
		APIKey:        defaultAPIKey,
		Timeout:       defaultTimeout,
		SlowThreshold: defaultSlowThreshold,
		MaxRetries:    defaultMaxRetries,
		RetryDelay:    defaultRetryDelay,
		LogLevel:      defaultLogLevel,
		LogFile:       mustExpand(defaultLogFile),
	}
}

// Load locates and parses the skylens config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL           string `toml:"api_url"`
		APIKey           string `toml:"api_key"`
		Timeout          string `toml:"timeout"`
		SlowThreshold    string `toml:"slow_threshold"`
		MaxRetries       *int   `toml:"max_retries"`
		RetryDelay       string `toml:"retry_delay"`
		BatchConcurrency int    `toml:"batch_concurrency"`
		LogLevel         string `toml:"log_level"`
		LogFile          string `toml:"log_file"`
		MetricsAddr      string `toml:"metrics_addr"`
		WarmInterval     string `toml:"warm_interval"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	if raw.MaxRetries != nil {
		if *raw.MaxRetries < 0 {
			return Config{}, fmt.Errorf("parse config: max_retries must not be negative")
		}
		cfg.MaxRetries = *raw.MaxRetries
	}
	if raw.BatchConcurrency < 0 {
		return Config{}, fmt.Errorf("parse config: batch_concurrency must not be negative")
	}
	cfg.BatchConcurrency = raw.BatchConcurrency

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"timeout", raw.Timeout, &cfg.Timeout},
		{"slow_threshold", raw.SlowThreshold, &cfg.SlowThreshold},
		{"retry_delay", raw.RetryDelay, &cfg.RetryDelay},
		{"warm_interval", raw.WarmInterval, &cfg.WarmInterval},
	}
	for _, d := range durations {
		if err := parseDuration(d.key, d.raw, d.dst); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// RetryPolicy returns the configured bounded retry policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.MaxRetries, Delay: c.RetryDelay}
}

// LogDir returns the directory holding the log file.
func (c Config) LogDir() string {
	if strings.TrimSpace(c.LogFile) == "" {
		return filepath.Dir(mustExpand(defaultLogFile))
	}
	return filepath.Dir(c.LogFile)
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func parseDuration(key, value string, dst *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("parse config: %s must not be negative", key)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
