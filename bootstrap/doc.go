// Package bootstrap runs the runemaster binary's lifecycle: components are
// started in registration order, configure callbacks wire the business layer
// on top of them, and everything is stopped in reverse order on exit.
//
//	app, err := bootstrap.NewApp(&cfg)
//	_ = app.RegisterComponent(storageComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    mgr = manager.New(...)
//	    return nil
//	})
//	err = app.RunTask(ctx, func(ctx context.Context) error { return mgr.RunPipeline(ctx, "p1") })
//
// Run blocks until SIGINT or SIGTERM and suits the HTTP server; RunTask runs
// one finite job and suits the other CLI commands.
package bootstrap
