// Package bootstrap builds the lendee pipeline and its backing connections
// from configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"lendee-scoring/internal/common/config"
	"lendee-scoring/internal/common/database"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/lendee"
)

// Deps holds the connections opened for the pipeline. Nil fields were not configured.
type Deps struct {
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
}

// Pingers lists the open connections for a readiness check.
func (d *Deps) Pingers() map[string]database.Pinger {
	out := make(map[string]database.Pinger)
	if d.Postgres != nil {
		out["postgres"] = d.Postgres
	}
	if d.Redis != nil {
		out["redis"] = d.Redis
	}
	return out
}

func (d *Deps) Close() {
	if d.Postgres != nil {
		_ = d.Postgres.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// Connect opens the postgres pool when it backs the sources and the redis
// client when a snapshot key is configured, retrying until each answers a ping.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*Deps, error) {
	deps := &Deps{}

	if cfg.Sources.Driver == config.SourceDriverPostgres {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Retry(ctx, 10, 2*time.Second, pg.Ping); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		deps.Postgres = pg
		log.Info("PostgreSQL connected", map[string]interface{}{"host": cfg.Database.Postgres.Host})
	}

	if cfg.Snapshot.RedisKey != "" {
		rdb := database.NewRedis(cfg.Database.Redis)
		if err := database.Retry(ctx, 5, time.Second, rdb.Ping); err != nil {
			_ = rdb.Close()
			deps.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		deps.Redis = rdb
		log.Info("Redis connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
	}

	return deps, nil
}

// Loader picks the source loader for the configured driver.
func Loader(cfg *config.Config, deps *Deps) (lendee.Loader, error) {
	switch cfg.Sources.Driver {
	case config.SourceDriverPostgres:
		if deps.Postgres == nil {
			return nil, fmt.Errorf("postgres source driver selected but no connection is open")
		}
		return lendee.NewPostgresLoader(deps.Postgres.DB, cfg.Sources.Tables), nil
	case config.SourceDriverCSV:
		return lendee.NewCSVLoader(cfg.Sources.Dir, cfg.Sources.Files), nil
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Sources.Driver)
	}
}

// Sinks returns the snapshot sinks enabled in configuration.
func Sinks(cfg *config.Config, deps *Deps) []lendee.SnapshotSink {
	var sinks []lendee.SnapshotSink
	if cfg.Snapshot.CSVPath != "" {
		sinks = append(sinks, &lendee.CSVSnapshot{Path: cfg.Snapshot.CSVPath})
	}
	if cfg.Snapshot.ParquetPath != "" {
		sinks = append(sinks, &lendee.ParquetSnapshot{Path: cfg.Snapshot.ParquetPath})
	}
	if cfg.Snapshot.RedisKey != "" && deps.Redis != nil {
		sinks = append(sinks, &lendee.RedisSnapshot{
			Client: deps.Redis.Client,
			Key:    cfg.Snapshot.RedisKey,
			TTL:    time.Duration(cfg.Snapshot.RedisTTL) * time.Second,
		})
	}
	return sinks
}

// Pipeline wires the loader and sinks into a lendee pipeline.
func Pipeline(cfg *config.Config, deps *Deps, log logger.Logger) (*lendee.Pipeline, error) {
	loader, err := Loader(cfg, deps)
	if err != nil {
		return nil, err
	}
	return lendee.NewPipeline(loader, log, Sinks(cfg, deps)...), nil
}
