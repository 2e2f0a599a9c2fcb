// Package config handles configuration for the repostashd daemon,
// including defaults, JSON overlay, environment variables, and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the Repostash daemon.
//
// Fields:
//   - ListenAddr: bind address for the websocket command endpoint.
//   - DatabasePath: SQLite file holding both local storage tiers.
//   - LogLevel: debug|info|warn|error.
//   - S3BaseEndpoint / S3Region / S3Bucket / S3AccessKey / S3SecretKey /
//     S3Prefix: settings for the S3-compatible remote mirror. When
//     S3BaseEndpoint is empty the daemon runs with an in-process remote
//     store (sync effectively local to the process).
//   - SyncDebounce: window for coalescing remote change notifications.
//   - SyncPollInterval: how often the daemon probes the remote metadata for
//     changes made by other devices. Zero disables polling.
type Config struct {
	ListenAddr       string
	DatabasePath     string
	LogLevel         string
	S3BaseEndpoint   string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3Prefix         string
	SyncDebounce     time.Duration
	SyncPollInterval time.Duration
}

// LoadDefaults populates c with sensible defaults. The S3 settings default
// to empty: the remote backend only activates when an endpoint and
// credentials are configured explicitly.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:8787"
	c.DatabasePath = "repostash.db"
	c.LogLevel = "info"
	c.S3BaseEndpoint = ""
	c.S3Region = "us-east-1"
	c.S3Bucket = "repostash"
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.S3Prefix = "sync/"
	c.SyncDebounce = 300 * time.Millisecond
	c.SyncPollInterval = 30 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
