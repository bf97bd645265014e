package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerow/internal/config"
	"github.com/conduit-lang/activerow/internal/logging"
	"github.com/conduit-lang/activerow/internal/orm/entity"
	"github.com/conduit-lang/activerow/internal/orm/hooks"
	"github.com/conduit-lang/activerow/internal/orm/refcache"
	"github.com/conduit-lang/activerow/internal/orm/schema"
	"github.com/conduit-lang/activerow/internal/orm/unitofwork"
)

// app holds what every data command needs
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
	mgr      *entity.Manager
	closers  []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func loadRegistry(cfg *config.Config) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := schema.LoadInto(reg, cfg.Models); err != nil {
		return nil, fmt.Errorf("load models from %s: %w", cfg.Models, err)
	}
	return reg, nil
}

// newApp connects the configured executor and builds the entity manager.
// observer may be nil.
func newApp(ctx context.Context, cfg *config.Config, observer entity.Observer) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	exec, closeExec, err := openExecutor(ctx, cfg, reg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: reg}
	a.onClose("executor", closeExec)

	var queue *hooks.AsyncQueue
	if cfg.Hooks.AsyncWorkers > 0 {
		queue = hooks.NewAsyncQueue(cfg.Hooks.AsyncWorkers, logger.Named("hooks"))
		queue.Start()
		a.onClose("hooks", func(context.Context) error {
			queue.Shutdown()
			return nil
		})
	}

	opts := []entity.Option{
		entity.WithExecutor(exec),
		entity.WithReferences(refcache.New()),
		entity.WithLifecycle(hooks.NewExecutor(queue, logger.Named("hooks"))),
		entity.WithLogger(logger.Named("entity")),
	}
	if observer != nil {
		opts = append(opts, entity.WithObserver(observer))
	}
	a.mgr = entity.NewManager(reg, opts...)

	logger.Debug("application ready",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("models", reg.List()))
	return a, nil
}

func (a *app) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources last-opened first
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.logger.Sync()
	return errors.Join(errs...)
}

// run executes fn in a unit of work acting with the --role roles. Entities
// touched by fn flush when it returns.
func (a *app) run(ctx context.Context, fn func(ctx context.Context, s *unitofwork.Scope) error) error {
	return unitofwork.Run(ctx, a.mgr, fn,
		unitofwork.WithLogger(a.logger),
		unitofwork.WithEntityOptions(entity.WithRoles(roles...)))
}

// withApp loads config, runs fn against a fresh app and closes it
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close(context.WithoutCancel(ctx)))
}
