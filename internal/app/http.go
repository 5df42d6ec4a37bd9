package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DarthNec/Fonana-sub001/pkg/banner"
	"github.com/DarthNec/Fonana-sub001/pkg/logger"
)

const shutdownGrace = 5 * time.Second

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.opt.Version
	if verStr == "" {
		verStr = "dev"
	}
	if a.opt.Commit != "" && a.opt.Commit != "none" {
		verStr += " (" + a.opt.Commit + ")"
	}
	if a.opt.BuildDate != "" && a.opt.BuildDate != "unknown" {
		verStr += " @ " + a.opt.BuildDate
	}
	banner.Print(a.cfg, "", verStr)
}

// router builds the HTTP surface: the websocket endpoint plus probes and
// metrics.
func (a *App) router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/ws", a.handler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports readiness: the notification store must answer.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := a.notifs.UnreadCount(r.Context(), "readyz-probe"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	ver := a.opt.Version
	if ver == "" {
		ver = "dev"
	}
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}

// startHTTP starts the HTTP server in a goroutine and returns a channel
// that will carry any fatal server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.cfg.Addr(), Handler: a.router()}
	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		var err error
		if cert != "" && key != "" {
			err = a.srv.ListenAndServeTLS(cert, key)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	return errCh
}

// shutdown drains in order: stop accepting upgrades, tell every live
// client the server is going away, then release the bus and the store.
func (a *App) shutdown() {
	logger.Info("server_shutting_down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if a.srv != nil {
		_ = a.srv.Shutdown(sctx)
	}
	a.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logger.Warn("bus_close_failed", "error", err)
		}
	}
	if err := a.notifs.Close(); err != nil {
		logger.Warn("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}
