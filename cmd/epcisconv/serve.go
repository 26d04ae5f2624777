package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/flemzord/epcisconv/internal/telemetry"
)

func serveCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			if cfgPath == "" {
				if resolved, err := resolveConfigPath(); err == nil {
					cfgPath = resolved
				}
			}

			cfg, gw, closeGateway, err := buildGateway(cfgPath)
			if err != nil {
				return err
			}
			defer closeGateway()

			logger := newLogger()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
				Enabled:        cfg.Telemetry.Enabled,
				OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
				ServiceName:    cfg.Telemetry.ServiceName,
				SampleFraction: cfg.Telemetry.SampleFraction,
			})
			if err != nil {
				return fmt.Errorf("telemetry setup: %w", err)
			}
			defer func() { _ = shutdownTelemetry(context.Background()) }()

			logger.Info("epcisconv: listening", "addr", cfg.Bind)
			return gw.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to gateway configuration file")
	return cmd
}
