// Package bootstrap wires the iochunt service together: logger, configuration,
// data directories, storage, tracing and the hunt components.
//
// NewApp runs the steps in order:
//
//   - InitLogger and InitConfig load the config file (or defaults) and build the zap logger
//   - EnsureDataDirectories creates the data directory that holds the SQLite database
//   - InitTracing installs the OpenTelemetry tracer provider when tracing is enabled
//   - InitStorage opens SQLite for indicators, hunt jobs, matches, file inventory
//     and endpoints, plus the configured endpoint log backend (sqlite, clickhouse or mongodb)
//   - InitHuntEngine registers the inventory and log sources and builds the hunt
//     engine, quick searcher and match reviewer, with the optional redis run lock
//     and nats event publisher
//
// A failing step releases whatever the earlier steps opened.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	app.WaitForShutdown()
//
// Shutdown stops the API server first and waits for running hunts. It then
// flushes traces and closes storage last.
package bootstrap
