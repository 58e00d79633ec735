package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/urlcheck/internal/config"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/Sternrassler/urlcheck/pkg/logging"
	"github.com/redis/go-redis/v9"
)

// openLocker builds the Locker for the configured backend. The returned
// func closes backend connections.
func openLocker(ctx context.Context, cfg config.LockConfig) (*lock.Locker, func(), error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return lock.New(store, logging.NewLogger("lock")), closeStore, nil
}

func openStore(ctx context.Context, cfg config.LockConfig) (lock.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendFile:
		return lock.NewFileStore(cfg.Path), func() {}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return lock.NewRedisStore(client, cfg.RedisKey), func() { client.Close() }, nil

	case config.BackendSQLite:
		store, err := lock.OpenSQLite(ctx, lock.SQLiteConfig{Path: cfg.SQLitePath, LockName: cfg.Name})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case config.BackendPostgres:
		store, err := lock.OpenPostgres(ctx, cfg.PostgresDSN, cfg.Name)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}
