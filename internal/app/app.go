// Package app wires configuration, logging, tracing and the HTTP routes into
// runnable services.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/0xReLogic/Tandem/internal/backend"
	"github.com/0xReLogic/Tandem/internal/config"
	"github.com/0xReLogic/Tandem/internal/health"
	"github.com/0xReLogic/Tandem/internal/logging"
	"github.com/0xReLogic/Tandem/internal/peer"
	"github.com/0xReLogic/Tandem/internal/relay"
	"github.com/0xReLogic/Tandem/internal/server"
	"github.com/0xReLogic/Tandem/internal/tracing"
)

// Run serves the relay with the binary's defaults until ctx is done.
func Run(ctx context.Context, d config.Defaults) error {
	cfg, teardown, err := setup(ctx, d)
	if err != nil {
		return err
	}
	defer teardown()

	srv, closeFn, err := Build(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return srv.Run(ctx)
}

// RunBackend serves the downstream peer until ctx is done.
func RunBackend(ctx context.Context, d config.Defaults) error {
	cfg, teardown, err := setup(ctx, d)
	if err != nil {
		return err
	}
	defer teardown()

	srv := &server.Server{
		ListenAddr: cfg.ListenAddr(),
		ServiceID:  cfg.ServiceID,
		Mount:      backend.Routes(cfg.Greeting),
	}
	return srv.Run(ctx)
}

// setup loads configuration and brings up logging and, if enabled, tracing.
// teardown flushes both.
func setup(ctx context.Context, d config.Defaults) (*config.Config, func(), error) {
	cfg, err := config.Load(d)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.Environment); err != nil {
		return nil, nil, fmt.Errorf("initialize logging: %w", err)
	}

	if cfg.WatchLogLevel(func(level string) {
		logging.SetLevel(level)
		logging.LogInfo("log_level_changed", map[string]interface{}{"level": level})
	}) {
		logging.LogInfo("config_watch_started", map[string]interface{}{"file": cfg.File()})
	}

	shutdown := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		s, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			logging.LogError("Failed to initialize tracing", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			shutdown = s
			logging.LogInfo("Tracing initialized", map[string]interface{}{
				"service":  cfg.Tracing.ServiceName,
				"endpoint": cfg.Tracing.Endpoint,
			})
		}
	}

	return cfg, func() {
		_ = shutdown(context.Background())
		logging.Sync()
	}, nil
}

// Build assembles the relay server for cfg without starting it. The returned
// func stops the background health checks.
func Build(cfg *config.Config) (*server.Server, func(), error) {
	format, err := relay.ParseFormat(cfg.RelayFormat)
	if err != nil {
		return nil, nil, err
	}
	caller, err := peer.NewHTTPCaller(cfg.PeerURL)
	if err != nil {
		return nil, nil, err
	}
	checker, err := health.New(cfg.PeerURL, cfg.Health.PeerCheckInterval)
	if err != nil {
		return nil, nil, err
	}

	h := relay.NewHandler(relay.Identity{ServiceID: cfg.ServiceID, Format: format}, caller)
	srv := &server.Server{
		ListenAddr: cfg.ListenAddr(),
		ServiceID:  cfg.ServiceID,
		Health:     checker.Handler(),
		Mount: func(r chi.Router) {
			r.Method(http.MethodGet, "/", h)
		},
	}
	return srv, checker.Close, nil
}
