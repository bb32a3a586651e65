package main

import (
	"context"
	"fmt"

	"github.com/kbukum/runemaster/api"
	"github.com/kbukum/runemaster/bootstrap"
	"github.com/kbukum/runemaster/component"
	"github.com/kbukum/runemaster/database"
	"github.com/kbukum/runemaster/dataset"
	"github.com/kbukum/runemaster/engine"
	"github.com/kbukum/runemaster/graphstore"
	"github.com/kbukum/runemaster/graphstore/gormstore"
	"github.com/kbukum/runemaster/graphstore/redisstore"
	"github.com/kbukum/runemaster/httpclient"
	"github.com/kbukum/runemaster/logger"
	"github.com/kbukum/runemaster/manager"
	"github.com/kbukum/runemaster/observability"
	"github.com/kbukum/runemaster/redis"
	"github.com/kbukum/runemaster/server"
	"github.com/kbukum/runemaster/storage"
	"github.com/kbukum/runemaster/task/builtin"

	// Storage providers register themselves with the factory.
	_ "github.com/kbukum/runemaster/storage/local"
	_ "github.com/kbukum/runemaster/storage/s3"
)

// wiring holds the started application. Manager is set once the app has
// been configured.
type wiring struct {
	app     *bootstrap.App[*Config]
	Manager *manager.Manager

	storage  *storage.Component
	database *database.Component
	redis    *redis.Component
	server   *server.Component
}

// wiringOption adjusts wiring before components are registered.
type wiringOption func(*wiring)

// withServer adds the HTTP server. It is started only after the api is
// mounted, and stopped before the other components.
func withServer() wiringOption {
	return func(r *wiring) {
		srv := server.New(r.app.Cfg.Server, r.app.Logger)
		srv.ApplyDefaults(r.app.Name, r.app.Components.HealthAll)
		r.server = server.NewComponent(srv)
	}
}

func newWiring(cfg *Config, log *logger.Logger, opts ...wiringOption) (*wiring, error) {
	var appOpts []bootstrap.Option
	if log != nil {
		appOpts = append(appOpts, bootstrap.WithLogger(log))
	}
	app, err := bootstrap.NewApp(cfg, appOpts...)
	if err != nil {
		return nil, err
	}
	r := &wiring{app: app}

	components := []component.Component{
		observability.NewComponent(cfg.Tracing, cfg.Metrics, app.Logger),
	}
	r.storage = storage.NewComponent(cfg.Storage, app.Logger)
	components = append(components, r.storage)

	switch cfg.GraphStore.Driver {
	case DriverSQLite:
		r.database = database.NewComponent(cfg.Database, app.Logger).WithAutoMigrate(gormstore.Models()...)
		components = append(components, r.database)
	case DriverRedis:
		r.redis = redis.NewComponent(cfg.Redis, app.Logger)
		components = append(components, r.redis)
	}
	for _, c := range components {
		if err := app.RegisterComponent(c); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	app.OnConfigure(r.configure)
	if r.server != nil {
		app.OnReady(r.server.Start)
		app.OnStop(r.server.Stop)
	}
	return r, nil
}

// configure wires the business layer on top of the started components.
func (r *wiring) configure(ctx context.Context, app *bootstrap.App[*Config]) error {
	cfg := app.Cfg

	backend, err := r.backend()
	if err != nil {
		return err
	}
	storeOpts := []graphstore.Option{graphstore.WithLogger(app.Logger)}
	if cfg.GraphStore.TraverseOnLoad {
		storeOpts = append(storeOpts, graphstore.WithTraversal())
	}
	store := graphstore.New(backend, storeOpts...)

	client, err := httpclient.New(cfg.HTTPClient)
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	opts := builtin.Options{HTTP: client, Log: app.Logger}
	if cfg.S3.Enabled {
		objects, err := storage.New(ctx, cfg.S3.Config, app.Logger)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		opts.ObjectStorage = objects
	}
	builtin.Configure(opts)

	engineOpts := []engine.Option{
		engine.WithLogger(app.Logger),
		engine.WithMaxParallel(cfg.Engine.MaxParallel),
	}
	if cfg.Metrics.Enabled {
		metrics, err := observability.NewMetrics(observability.Meter(serviceName))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		engineOpts = append(engineOpts, engine.WithMetrics(metrics))
	}
	eng := engine.New(dataset.New(r.storage.Storage()), engineOpts...)
	r.Manager = manager.New(store, eng, manager.WithLogger(app.Logger))

	if r.server != nil {
		api.New(r.Manager, app.Logger).Register(r.server.Server().GinEngine())
	}
	return nil
}

func (r *wiring) backend() (graphstore.Backend, error) {
	switch {
	case r.database != nil:
		return gormstore.New(r.database.DB())
	case r.redis != nil:
		return redisstore.New(r.redis.Client(), r.app.Cfg.Redis.KeyPrefix), nil
	default:
		return graphstore.NewMemoryBackend(), nil
	}
}

// RunTask runs fn against the configured manager.
func (r *wiring) RunTask(ctx context.Context, fn func(ctx context.Context, m *manager.Manager) error) error {
	return r.app.RunTask(ctx, func(ctx context.Context) error {
		return fn(ctx, r.Manager)
	})
}

// Serve blocks until a shutdown signal or ctx is done.
func (r *wiring) Serve(ctx context.Context) error {
	return r.app.Run(ctx)
}
