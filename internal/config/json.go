package config

import (
	"encoding/json"
	"os"

	"github.com/repostash/repostash/internal/flagx"
	"github.com/repostash/repostash/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like
// "300ms" or as integer nanoseconds. After parsing, values are copied into
// the runtime Config.
type JsonConfig struct {
	ListenAddr       string          `json:"listen_addr"`
	DatabasePath     string          `json:"database_path"`
	LogLevel         string          `json:"log_level"`
	S3BaseEndpoint   string          `json:"s3_base_endpoint"`
	S3Region         string          `json:"s3_region"`
	S3Bucket         string          `json:"s3_bucket"`
	S3AccessKey      string          `json:"s3_access_key"`
	S3SecretKey      string          `json:"s3_secret_key"`
	S3Prefix         string          `json:"s3_prefix"`
	SyncDebounce     *timex.Duration `json:"sync_debounce"`
	SyncPollInterval *timex.Duration `json:"sync_poll_interval"`
}

// parseJson overlays Config with values loaded from a JSON file resolved via
// the -c/-config flags. Missing file path means no JSON stage. Empty JSON
// fields leave the current values untouched.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ListenAddr != "" {
		cfg.ListenAddr = jc.ListenAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.S3Prefix != "" {
		cfg.S3Prefix = jc.S3Prefix
	}
	if jc.SyncDebounce != nil {
		cfg.SyncDebounce = jc.SyncDebounce.Duration
	}
	if jc.SyncPollInterval != nil {
		cfg.SyncPollInterval = jc.SyncPollInterval.Duration
	}
}
