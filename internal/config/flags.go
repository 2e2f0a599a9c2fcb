package config

import (
	"flag"
	"os"
	"time"

	"github.com/repostash/repostash/internal/flagx"
)

// parseEnv overlays Config with values from environment variables.
// Only set, non-empty variables override.
func parseEnv(cfg *Config) {
	flagx.EnvString("REPOSTASH_LISTEN_ADDR", &cfg.ListenAddr)
	flagx.EnvString("REPOSTASH_DATABASE_PATH", &cfg.DatabasePath)
	flagx.EnvString("REPOSTASH_LOG_LEVEL", &cfg.LogLevel)
	flagx.EnvString("REPOSTASH_S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)
	flagx.EnvString("REPOSTASH_S3_REGION", &cfg.S3Region)
	flagx.EnvString("REPOSTASH_S3_BUCKET", &cfg.S3Bucket)
	flagx.EnvString("REPOSTASH_S3_ACCESS_KEY", &cfg.S3AccessKey)
	flagx.EnvString("REPOSTASH_S3_SECRET_KEY", &cfg.S3SecretKey)
	flagx.EnvString("REPOSTASH_S3_PREFIX", &cfg.S3Prefix)
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   listen address for the command endpoint
//	-d string   path to the SQLite database file
//	-l string   log level
//	-debounce int   sync debounce window in milliseconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l", "-debounce"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address for the command endpoint")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the SQLite database file")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")
	debounceMs := fs.Int("debounce", int(cfg.SyncDebounce.Milliseconds()), "sync debounce window (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncDebounce = time.Duration(*debounceMs) * time.Millisecond
}
