// Package main is the entry point for the epcisconv CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "epcisconv",
		Short:         "Convert EPCIS documents between tag/XML and object/JSON-LD, across schema revisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		versionCmd(),
		convertCmd(),
		serveCmd(),
		mcpCmd(),
		watchCmd(),
		serviceCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("epcisconv %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// resolveConfigPath searches for a gateway config file in standard
// locations. Search order: $XDG_CONFIG_HOME/epcisconv/epcisconv.yaml
// when XDG_CONFIG_HOME is set, otherwise
// ~/.config/epcisconv/epcisconv.yaml; then ./epcisconv.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "epcisconv", "epcisconv.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "epcisconv", "epcisconv.yaml"))
	}
	candidates = append(candidates, "epcisconv.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
