// Package config loads the skylens configuration file.
//
// # Overview
//
// Configuration lives in a single TOML file. Every key is optional and a
// missing file is not an error, so skylens works against a local API proxy
// with no setup at all.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/skylens/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but a field is missing or blank, keep its default
//
// The command layer overlays SKYLENS_* environment variables and flags on top
// of the loaded values.
//
// # TOML Format
//
//	api_url = "http://127.0.0.1:5000/api"
//	api_key = "DEMO_KEY"
//	timeout = "10s"
//	slow_threshold = "2s"
//	max_retries = 2
//	retry_delay = "1s"
//	batch_concurrency = 0
//	log_level = "info"
//	log_file = "~/.local/share/skylens/skylens.log"
//	metrics_addr = ""
//	warm_interval = "0s"
//
// Durations use time.ParseDuration syntax. A zero warm_interval disables
// background cache warming and a zero batch_concurrency means no cap.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors and malformed or negative durations and counts
//
// Parse failures are prefixed with "parse config:".
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return fmt.Errorf("load config: %w", err)
//	}
//	client, err := nasa.NewClient(cfg.APIURL,
//		nasa.WithAPIKey(cfg.APIKey),
//		nasa.WithRetry(cfg.RetryPolicy()),
//	)
//	apod, err := client.APOD(ctx, "")
package config
