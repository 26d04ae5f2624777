package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/epcisconv/internal/audit"
	"github.com/flemzord/epcisconv/internal/gateway"
	"github.com/flemzord/epcisconv/internal/gwconfig"
	"github.com/flemzord/epcisconv/internal/metrics"
	"github.com/flemzord/epcisconv/internal/router"
	"github.com/flemzord/epcisconv/internal/workerpool"
)

// newLogger builds the text-handler logger every epcisconv subcommand
// logs through, writing to stderr so stdout stays free for document
// output.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// buildGateway loads configuration from cfgPath (or the defaults, if
// empty), registers its metrics with the default Prometheus registerer,
// and assembles a Gateway ready to serve. The returned closer must be
// called once the gateway is done serving to flush/close the audit log.
func buildGateway(cfgPath string) (*gwconfig.Config, *gateway.Gateway, func(), error) {
	logger := newLogger()
	cfg := gwconfig.Default()
	if cfgPath != "" {
		loaded, err := gwconfig.Load(cfgPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load config %s: %w", cfgPath, err)
		}
		cfg = loaded
	}

	closer := func() {}
	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		var err error
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		closer = func() { _ = auditLog.Close() }
	}

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	pool := workerpool.New(cfg.WorkerPoolSize)
	rt := router.New().WithChunkSize(cfg.ChunkSize).WithWorkerPool(pool).WithLogger(logger)

	return cfg, gateway.New(cfg, rt, m, auditLog, logger), closer, nil
}
