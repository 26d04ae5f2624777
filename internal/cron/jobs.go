package cron

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flemzord/epcisconv/internal/router"
	"github.com/flemzord/epcisconv/internal/source"
)

// WatchJob periodically scans InputDir for EPCIS documents and
// re-converts any that changed since the previous tick, writing the
// result into OutputDir. It tracks per-file modification times the same
// way the session-extraction job it's grounded on tracked per-session
// progress, so only changed files are reprocessed on each tick.
type WatchJob struct {
	Logger       *slog.Logger
	Router       *router.Router
	Spec         router.ConversionSpec
	InputDir     string
	OutputDir    string
	ScheduleExpr string // empty = default "*/1 * * * *"

	// lastSeen tracks each input file's modification time as of the last
	// tick that processed it, so unchanged files are skipped.
	lastSeen map[string]time.Time
}

var _ Job = (*WatchJob)(nil)

// Name implements Job.
func (j *WatchJob) Name() string {
	return "watch:" + j.InputDir
}

// Schedule implements Job.
func (j *WatchJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/1 * * * *"
}

// Run converts every new or modified document under InputDir, writing
// each result into OutputDir under the same base name with an extension
// matching the target format.
func (j *WatchJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: watch cancelled: %w", ctx.Err())
	}
	if j.lastSeen == nil {
		j.lastSeen = make(map[string]time.Time)
	}

	entries, err := os.ReadDir(j.InputDir)
	if err != nil {
		return fmt.Errorf("cron: read watch dir %s: %w", j.InputDir, err)
	}

	var converted, failed int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: watch cancelled: %w", ctx.Err())
		}
		if entry.IsDir() || !isDocumentFile(entry.Name()) {
			continue
		}

		path := filepath.Join(j.InputDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			j.Logger.Error("cron: watch stat failed", "file", path, "error", err)
			failed++
			continue
		}
		if prev, ok := j.lastSeen[path]; ok && !info.ModTime().After(prev) {
			continue
		}

		if err := j.convertFile(ctx, path); err != nil {
			j.Logger.Error("cron: watch conversion failed", "file", path, "error", err)
			failed++
			continue
		}
		j.lastSeen[path] = info.ModTime()
		converted++
	}

	if converted > 0 || failed > 0 {
		j.Logger.Info("cron: watch tick complete", "converted", converted, "failed", failed, "dir", j.InputDir)
	}
	return nil
}

// convertFile runs one document through Router and writes the result
// alongside OutputDir, named after the input with an extension matching
// the target format.
func (j *WatchJob) convertFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := j.Router.Convert(ctx, source.FromBytes(data), j.Spec)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}

	var out []byte
	for {
		c, err, ok := result.Chunks.Next(ctx)
		if err != nil {
			return fmt.Errorf("convert %s: %w", path, err)
		}
		if !ok {
			break
		}
		out = append(out, c.Data...)
	}

	if err := os.MkdirAll(j.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", j.OutputDir, err)
	}
	outPath := filepath.Join(j.OutputDir, outputName(entryBaseName(path), j.Spec.ToFmt))
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	j.Logger.Info("cron: watch converted file",
		"file", path, "output", outPath,
		"size_in", humanize.Bytes(uint64(len(data))),
		"size_out", humanize.Bytes(uint64(len(out))),
	)
	return nil
}

func entryBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputName picks the conventional extension for fmt: .xml for tag
// documents, .json for object (JSON-LD) documents.
func outputName(base string, fmtName router.Format) string {
	if fmtName == router.Tag {
		return base + ".xml"
	}
	return base + ".json"
}

// isDocumentFile recognizes the file extensions the watcher will
// attempt to read: .xml for tag input, .json/.jsonld for object input.
func isDocumentFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml", ".json", ".jsonld":
		return true
	default:
		return false
	}
}
