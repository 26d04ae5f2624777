package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/epcisconv/internal/router"
	"github.com/flemzord/epcisconv/internal/source"
)

func convertCmd() *cobra.Command {
	var (
		inPath, outPath                string
		fromFmt, fromRev, toFmt, toRev string
		normalizeToLegacyIDs           bool
		noInteractive                  bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a single EPCIS document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fromFmt == "" || toFmt == "" {
				if noInteractive {
					return fmt.Errorf("--from-fmt and --to-fmt are required with --no-interactive")
				}
				if err := promptMissingSpecFields(&fromFmt, &fromRev, &toFmt, &toRev); err != nil {
					return err
				}
			}

			input, err := readInput(inPath)
			if err != nil {
				return err
			}

			spec := router.ConversionSpec{
				FromFmt:              router.Format(fromFmt),
				FromRev:              router.Revision(fromRev),
				ToFmt:                router.Format(toFmt),
				ToRev:                router.Revision(toRev),
				NormalizeToLegacyIDs: normalizeToLegacyIDs,
			}

			result, err := router.New().Convert(cmd.Context(), source.FromBytes(input), spec)
			if err != nil {
				return err
			}

			out, err := openOutput(outPath)
			if err != nil {
				return err
			}
			if out != os.Stdout {
				defer func() { _ = out.Close() }()
			}

			if err := drainChunksTo(cmd.Context(), out, result); err != nil {
				return err
			}
			if warnings := result.Warnings(); len(warnings) > 0 {
				for _, w := range warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "-", "Input file path, or - for stdin")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file path, or - for stdout")
	cmd.Flags().StringVar(&fromFmt, "from-fmt", "", "Source serialization: tag or object")
	cmd.Flags().StringVar(&fromRev, "from-rev", "", "Source schema revision: 1.1, 1.2, or 2.0 (autodetected for tag input when omitted)")
	cmd.Flags().StringVar(&toFmt, "to-fmt", "", "Target serialization: tag or object")
	cmd.Flags().StringVar(&toRev, "to-rev", "", "Target schema revision: 1.1, 1.2, or 2.0 (defaults to from-rev)")
	cmd.Flags().BoolVar(&normalizeToLegacyIDs, "normalize-to-legacy-ids", false, "Keep AssociationEvent/persistentDisposition/sensorElementList when downgrading to 1.2")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Fail instead of prompting when required flags are missing")

	return cmd
}

// promptMissingSpecFields fills in any empty from/to fmt/rev fields
// through an interactive form, leaving already-set flags untouched.
func promptMissingSpecFields(fromFmt, fromRev, toFmt, toRev *string) error {
	var groups []*huh.Group

	if *fromFmt == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Source format").
				Options(
					huh.NewOption("tag (XML)", "tag"),
					huh.NewOption("object (JSON-LD)", "object"),
				).
				Value(fromFmt),
		))
	}
	if *fromRev == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Source schema revision (leave default to autodetect for tag input)").
				Options(
					huh.NewOption("autodetect", ""),
					huh.NewOption("1.1", "1.1"),
					huh.NewOption("1.2", "1.2"),
					huh.NewOption("2.0", "2.0"),
				).
				Value(fromRev),
		))
	}
	if *toFmt == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target format").
				Options(
					huh.NewOption("tag (XML)", "tag"),
					huh.NewOption("object (JSON-LD)", "object"),
				).
				Value(toFmt),
		))
	}
	if *toRev == "" {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target schema revision").
				Options(
					huh.NewOption("1.1", "1.1"),
					huh.NewOption("1.2", "1.2"),
					huh.NewOption("2.0", "2.0"),
				).
				Value(toRev),
		))
	}

	if len(groups) == 0 {
		return nil
	}
	return huh.NewForm(groups...).Run()
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func openOutput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func drainChunksTo(ctx context.Context, w io.Writer, result router.Result) error {
	for {
		c, err, ok := result.Chunks.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := w.Write(c.Data); err != nil {
			return err
		}
	}
}
