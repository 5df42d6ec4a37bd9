// Package app wires the realtime server components together and owns
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DarthNec/Fonana-sub001/internal/retention"
	"github.com/DarthNec/Fonana-sub001/pkg/access"
	"github.com/DarthNec/Fonana-sub001/pkg/auth"
	"github.com/DarthNec/Fonana-sub001/pkg/bus"
	"github.com/DarthNec/Fonana-sub001/pkg/config"
	"github.com/DarthNec/Fonana-sub001/pkg/push"
	"github.com/DarthNec/Fonana-sub001/pkg/realtime"
	"github.com/DarthNec/Fonana-sub001/pkg/store"
)

// Options injects the platform collaborators. The realtime subsystem
// does not own users, posts, or subscriptions; an embedding process
// passes its own store implementations here. Nil stores fall back to
// empty in-memory ones, which refuse every token subject — fine for
// smoke-testing the binary, useless for production.
type Options struct {
	Users   store.UserStore
	Content store.ContentStore

	Version   string
	Commit    string
	BuildDate string
}

// App encapsulates the server components and lifecycle.
type App struct {
	cfg *config.Config
	opt Options

	notifs    *store.Pebble
	registry  *realtime.Registry
	monitor   *realtime.Monitor
	handler   *realtime.Handler
	bus       bus.Bus
	publisher *push.Publisher

	srv *http.Server
}

// New initializes everything that needs no running context: config
// validation, the notification store, the registry, and the websocket
// handler. Call Run to start serving.
func New(cfg *config.Config, opt Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opt.Users == nil {
		opt.Users = store.NewMemoryUsers()
	}
	if opt.Content == nil {
		opt.Content = store.NewMemoryContent()
	}

	notifs, err := store.OpenPebble(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Server.DBPath, err)
	}

	registry := realtime.NewRegistry(access.NewController(opt.Content), notifs, cfg.Realtime.BacklogLimit)
	verifier := auth.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, opt.Users)
	limiter := auth.NewDialLimiter(cfg.Auth.DialRPS, cfg.Auth.DialBurst)
	heartbeat := cfg.Realtime.HeartbeatIntervalDuration()

	a := &App{
		cfg:      cfg,
		opt:      opt,
		notifs:   notifs,
		registry: registry,
		monitor:  realtime.NewMonitor(registry, heartbeat),
		handler: realtime.NewHandler(verifier, registry, limiter, realtime.HandlerOptions{
			Heartbeat:  heartbeat,
			SendBuffer: cfg.Realtime.SendBuffer,
		}),
	}
	if cfg.Bus.Addr != "" {
		a.bus = bus.NewRedis(bus.RedisOptions{
			Addr:     cfg.Bus.Addr,
			Password: cfg.Bus.Password,
			DB:       cfg.Bus.DB,
			Prefix:   cfg.Bus.Prefix,
		})
	}
	a.publisher = push.NewPublisher(registry, a.bus, notifs)
	return a, nil
}

// Publisher exposes the domain emitters so the embedding process can
// push events through this instance.
func (a *App) Publisher() *push.Publisher { return a.publisher }

// Run starts the bus subscriber, liveness monitor, retention scheduler,
// and HTTP server, and blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.bus != nil {
		if err := a.bus.Start(runCtx, a.publisher.Relay); err != nil {
			return fmt.Errorf("bus start: %w", err)
		}
	}
	go a.monitor.Run(runCtx)

	stopRetention, err := retention.Start(runCtx, a.cfg.Retention, a.notifs)
	if err != nil {
		return err
	}
	defer stopRetention()

	a.printBanner()
	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}
