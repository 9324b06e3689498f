package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Ajay-css/chatify/config"
	"github.com/Ajay-css/chatify/database"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/repository"
	"github.com/Ajay-css/chatify/ws"
)

// Repositories holds the storage adapters chosen by config.
type Repositories struct {
	User     repository.UserRepository
	Message  repository.MessageRepository
	Presence ws.PresenceStore // nil when Redis is not configured

	closers []func()
}

func (r *Repositories) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func initRepositories(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	repos := &Repositories{}

	switch cfg.Database.Driver {
	case config.DriverMongo:
		m, err := database.NewMongo(ctx, database.MongoConfig{
			URI:      cfg.Database.MongoURL,
			Database: cfg.Database.MongoDB,
			MaxRetry: cfg.Database.MongoRetries,
		})
		if err != nil {
			return nil, err
		}
		repos.closers = append(repos.closers, func() {
			if err := m.Close(context.Background()); err != nil {
				logger.Warnf("[main] mongo disconnect: %v", err)
			}
		})
		repos.User = repository.NewMongoUserRepo(m.DB)
		repos.Message = repository.NewMongoMessageRepo(m.DB)

	case config.DriverSQLite:
		db, err := database.NewEmbedded(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		repos.closers = append(repos.closers, func() { _ = db.Close() })
		repos.User = repository.NewSQLiteUserRepo(db.Conn)
		repos.Message = repository.NewSQLiteMessageRepo(db.Conn)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, database.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// the mirror is optional; run without it
			logger.Warnf("[main] presence mirror disabled: %v", err)
		} else {
			repos.closers = append(repos.closers, func() { closeRedis(rdb) })
			repos.Presence = repository.NewRedisPresenceStore(rdb, cfg.Redis.PresenceTTL)
		}
	}

	return repos, nil
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		logger.Warnf("[main] redis close: %v", err)
	}
}
