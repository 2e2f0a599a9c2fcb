package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/repostash/repostash/internal/config"
	"github.com/repostash/repostash/internal/logging"
	"github.com/repostash/repostash/internal/remote"
	"github.com/repostash/repostash/internal/service"
	"github.com/repostash/repostash/internal/store"
)

// app bundles everything a command needs after startup.
type app struct {
	cfg    *config.Config
	log    logging.Logger
	db     *sql.DB
	mirror *remote.Mirror
	svc    *service.Service
}

// buildApp loads configuration, opens the database, and wires the service
// stack. The caller must defer close.
func buildApp(ctx context.Context) (*app, func(), error) {
	cfg := config.LoadConfig()
	log := logging.NewDefault(os.Stderr, cfg.LogLevel)

	db, err := store.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	kv, err := buildRemoteKV(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	mirror := remote.NewMirror(kv, remote.DefaultQuotas(), log)
	svc := service.New(
		store.NewTieredStore(db, log),
		store.NewKVRepository(db),
		mirror,
		log,
	)

	a := &app{cfg: cfg, log: log, db: db, mirror: mirror, svc: svc}
	closeFn := func() {
		svc.Flush()
		_ = db.Close()
	}
	return a, closeFn, nil
}

// buildRemoteKV picks the remote backend: S3 when an endpoint is
// configured, otherwise an in-process store so sync commands still work
// against local state.
func buildRemoteKV(ctx context.Context, cfg *config.Config) (remote.KV, error) {
	if cfg.S3BaseEndpoint == "" {
		return remote.NewMemoryKV(), nil
	}
	kv, err := remote.NewS3KV(ctx, remote.S3Config{
		BaseEndpoint: cfg.S3BaseEndpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Prefix:       cfg.S3Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("init remote store: %w", err)
	}
	return kv, nil
}
