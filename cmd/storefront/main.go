// backend/cmd/storefront/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"booknest/internal/application/notification"
	appcfg "booknest/internal/infra/config"
	"booknest/internal/infra/logging"
	"booknest/internal/platform/di"
)

// atomicHandler allows swapping the underlying handler at runtime safely.
type atomicHandler struct {
	v atomic.Value // stores http.Handler
}

func newAtomicHandler(initial http.Handler) *atomicHandler {
	ah := &atomicHandler{}
	if initial == nil {
		initial = http.NotFoundHandler()
	}
	ah.v.Store(initial)
	return ah
}

func (h *atomicHandler) Store(next http.Handler) {
	if next == nil {
		return
	}
	h.v.Store(next)
}

func (h *atomicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.v.Load().(http.Handler).ServeHTTP(w, r)
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		// logger is not up yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	lg, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	log := lg.Named("boot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────
	// Start listening ASAP with lightweight mux (healthz only)
	// ─────────────────────────────────────────────────────────────
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	switcher := newAtomicHandler(healthMux)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           switcher,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: the notification stream stays open
		IdleTimeout: 60 * time.Second,
		// open notification streams end with the signal context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ─────────────────────────────────────────────────────────────
	// DI init; then swap handler to the full router
	// ─────────────────────────────────────────────────────────────
	initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	cont, err := di.NewContainer(initCtx, cfg, lg)
	cancel()
	stopLoops := func() error { return nil }
	if err != nil {
		log.Error("di init failed (serving /healthz only)", zap.Error(err))
	} else {
		switcher.Store(cont.Router())
		log.Info("handler switched to storefront router")
		stopLoops = notification.Start(ctx, cont.Runners()...)
	}

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case err, ok := <-serveErr:
		if ok && err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}

	// loops still write to the stores; close them only once every loop has returned
	if err := stopLoops(); err != nil {
		log.Error("background loop failed", zap.Error(err))
	}
	if cont != nil {
		if err := cont.Close(); err != nil {
			log.Warn("container close error", zap.Error(err))
		}
	}
	log.Info("server stopped")
}
