package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// gatewayProgram wraps the HTTP gateway as a service.Interface so it can
// be installed as a native OS service (systemd, launchd, Windows
// Service) rather than run in a foreground terminal.
type gatewayProgram struct {
	cfgPath string

	cancel context.CancelFunc
	done   chan error
}

func (p *gatewayProgram) Start(s service.Service) error {
	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan error, 1)
	go func() {
		p.done <- p.run(ctx)
	}()
	return nil
}

func (p *gatewayProgram) run(ctx context.Context) error {
	_, gw, closeGateway, err := buildGateway(p.cfgPath)
	if err != nil {
		return err
	}
	defer closeGateway()
	return gw.ListenAndServe(ctx)
}

func (p *gatewayProgram) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	return nil
}

func serviceCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "service <install|uninstall|start|stop|run>",
		Short: "Manage epcisconv as a native OS service",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "epcisconv",
				DisplayName: "EPCIS Converter Gateway",
				Description: "Converts EPCIS documents between tag/XML and object/JSON-LD over HTTP.",
			}
			if cfgPath != "" {
				svcConfig.Arguments = []string{"service", "run", "--config", cfgPath}
			} else {
				svcConfig.Arguments = []string{"service", "run"}
			}

			prg := &gatewayProgram{cfgPath: cfgPath}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}

			switch args[0] {
			case "install":
				return svc.Install()
			case "uninstall":
				return svc.Uninstall()
			case "start":
				return svc.Start()
			case "stop":
				return svc.Stop()
			case "run":
				return svc.Run()
			default:
				return fmt.Errorf("unknown service action %q (want install, uninstall, start, stop, or run)", args[0])
			}
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to gateway configuration file")
	return cmd
}
