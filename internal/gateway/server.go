package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/epcisconv/internal/audit"
	"github.com/flemzord/epcisconv/internal/gwconfig"
	"github.com/flemzord/epcisconv/internal/metrics"
	"github.com/flemzord/epcisconv/internal/router"
)

// Gateway serves the Router over HTTP.
type Gateway struct {
	cfg     *gwconfig.Config
	router  *router.Router
	metrics *metrics.Metrics
	audit   *audit.Log // nil when auditing is disabled
	logger  *slog.Logger

	srv *http.Server
}

// New builds a Gateway. audit may be nil to disable conversion logging.
// logger may be nil, defaulting to slog.Default().
func New(cfg *gwconfig.Config, rt *router.Router, m *metrics.Metrics, al *audit.Log, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{cfg: cfg, router: rt, metrics: m, audit: al, logger: logger}
}

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/convert", func(r chi.Router) {
		r.Post("/", g.handleConvert())
		r.Post("/events", g.handleConvertEvents())
		r.Get("/ws", g.handleConvertWS())
	})

	return r
}

// ListenAndServe starts the HTTP server on cfg.Bind and blocks until ctx
// is cancelled, then shuts down within cfg.ShutdownTimeout.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	g.srv = &http.Server{
		Addr:         g.cfg.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		if err := g.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	g.logger.Info("gateway: listening", "addr", g.cfg.Bind)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownTimeout)
		defer cancel()
		g.logger.Info("gateway: shutting down")
		return g.srv.Shutdown(shutdownCtx)
	}
}

// recordAudit appends a conversion entry if auditing is enabled. A
// failure to record is logged and swallowed, never surfaced to the HTTP
// client — a broken audit log must not break conversions.
func (g *Gateway) recordAudit(ctx context.Context, e audit.Entry) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, e); err != nil {
		g.logger.Warn("gateway: failed to record audit entry", "error", err, "correlation_id", e.CorrelationID)
	}
}

func elapsedSince(start time.Time) time.Duration {
	return time.Since(start)
}
