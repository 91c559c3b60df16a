package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/blogem/reqtel/config"
	"github.com/blogem/reqtel/database"
	"github.com/blogem/reqtel/repositories"
)

// store owns the audit backends and their connections
type store struct {
	repos   *repositories.Repositories
	closers []func()
}

// openStore connects the configured audit store. The Redis mirror is only
// attached when withMirror is set, since batch commands never write records.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, withMirror bool) (*store, error) {
	s := &store{}

	var mirrors []repositories.AuditSink
	if withMirror && cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		s.closers = append(s.closers, func() { client.Close() })

		// The mirror is best effort; a down Redis must not keep the service from starting
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis audit mirror unreachable, writes will be retried per record", zap.Error(err))
		}
		mirrors = append(mirrors, repositories.NewRedisAuditStream(client, cfg.Redis.Stream, cfg.Redis.MaxLen))
	}

	switch cfg.Database.Driver {
	case "postgres":
		pool, err := database.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.repos = repositories.NewPostgresRepositories(pool, mirrors...)
	default:
		db, err := database.InitializeDatabase(cfg.Database.Path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		s.closers = append(s.closers, func() { db.Close() })
		s.repos = repositories.NewRepositories(db, mirrors...)
	}

	return s, nil
}

// Close releases connections in reverse order of opening
func (s *store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
