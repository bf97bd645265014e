package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/config"
	"github.com/conduit-lang/activerow/internal/orm/executor"
	"github.com/conduit-lang/activerow/internal/orm/executor/memory"
	"github.com/conduit-lang/activerow/internal/orm/executor/redisexec"
	"github.com/conduit-lang/activerow/internal/orm/executor/sqlexec"
	"github.com/conduit-lang/activerow/internal/orm/schema"
)

const pingTimeout = 5 * time.Second

// poolConfig holds database/sql connection pool limits
type poolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var defaultPool = poolConfig{
	MaxOpenConns:    100,
	MaxIdleConns:    10,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 10 * time.Minute,
}

func nopClose(context.Context) error { return nil }

// openExecutor connects the executor named by database.driver. Every
// registered model's key field is passed on so inserts report the
// generated identity of keyed tables only.
func openExecutor(ctx context.Context, cfg *config.Config, reg *schema.Registry, logger *zap.Logger) (executor.Executor, func(context.Context) error, error) {
	var models []*schema.Model
	for _, name := range reg.List() {
		if m, ok := reg.Get(name); ok {
			models = append(models, m)
		}
	}

	switch cfg.Database.Driver {
	case "memory":
		opts := make([]memory.Option, 0, len(models))
		for _, m := range models {
			opts = append(opts, memory.WithKeyColumn(m.Table, m.KeyField))
		}
		return memory.New(opts...), nopClose, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		opts := []redisexec.Option{redisexec.WithPrefix(cfg.Redis.Prefix)}
		for _, m := range models {
			opts = append(opts, redisexec.WithKeyColumn(m.Table, m.KeyField))
		}
		return redisexec.New(client, opts...), func(context.Context) error { return client.Close() }, nil

	default:
		dialect, err := sqlexec.DialectFor(cfg.Database.Driver)
		if err != nil {
			return nil, nil, err
		}
		db, err := openDB(ctx, cfg.Database.Driver, cfg.Database.URL, defaultPool)
		if err != nil {
			return nil, nil, err
		}

		opts := []sqlexec.Option{sqlexec.WithLogger(logger.Named("sql"))}
		for _, m := range models {
			opts = append(opts, sqlexec.WithKeyColumn(m.Table, m.KeyField))
		}
		return sqlexec.New(db, dialect, opts...), func(context.Context) error { return db.Close() }, nil
	}
}

// openDB opens and pings a database/sql pool
func openDB(ctx context.Context, driver, url string, pool poolConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}
