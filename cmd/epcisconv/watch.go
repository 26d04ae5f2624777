package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/flemzord/epcisconv/internal/cron"
	"github.com/flemzord/epcisconv/internal/router"
)

func watchCmd() *cobra.Command {
	var (
		inDir, outDir                  string
		fromFmt, fromRev, toFmt, toRev string
		schedule                       string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and re-convert changed EPCIS documents on a schedule",
		RunE: func(_ *cobra.Command, _ []string) error {
			if fromFmt == "" || toFmt == "" {
				return fmt.Errorf("--from-fmt and --to-fmt are required")
			}

			logger := newLogger()

			job := &cron.WatchJob{
				Logger:    logger,
				Router:    router.New().WithLogger(logger),
				InputDir:  inDir,
				OutputDir: outDir,
				Spec: router.ConversionSpec{
					FromFmt: router.Format(fromFmt),
					FromRev: router.Revision(fromRev),
					ToFmt:   router.Format(toFmt),
					ToRev:   router.Revision(toRev),
				},
				ScheduleExpr: schedule,
			}

			scheduler := cron.NewScheduler(logger)
			if err := scheduler.RegisterJob(job); err != nil {
				return err
			}
			if err := scheduler.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			<-ctx.Done()

			return scheduler.Stop(context.Background())
		},
	}

	cmd.Flags().StringVar(&inDir, "in-dir", ".", "Directory to watch for EPCIS documents")
	cmd.Flags().StringVar(&outDir, "out-dir", "./converted", "Directory to write converted documents into")
	cmd.Flags().StringVar(&fromFmt, "from-fmt", "", "Source serialization: tag or object")
	cmd.Flags().StringVar(&fromRev, "from-rev", "", "Source schema revision (autodetected for tag input when omitted)")
	cmd.Flags().StringVar(&toFmt, "to-fmt", "", "Target serialization: tag or object")
	cmd.Flags().StringVar(&toRev, "to-rev", "", "Target schema revision (defaults to from-rev)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule (default */1 * * * *)")

	return cmd
}
