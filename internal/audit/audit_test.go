package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/epcisconv/internal/audit"
)

func TestOpenCreatesNestedDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "audit.db")

	log, err := audit.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = log.Close() }()
}

func TestRecordThenRecentRoundTrips(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	log, err := audit.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = log.Close() }()

	ctx := context.Background()
	if err := log.Record(ctx, audit.Entry{
		CorrelationID: "corr-1",
		FromFmt:       "tag", FromRev: "2.0",
		ToFmt: "object", ToRev: "2.0",
		BytesIn: 100, BytesOut: 120,
		Duration: 5 * time.Millisecond,
		Result:   "completed",
	}); err != nil {
		t.Fatal(err)
	}
	if err := log.Record(ctx, audit.Entry{
		CorrelationID: "corr-2",
		FromFmt:       "object", FromRev: "2.0",
		ToFmt: "tag", ToRev: "1.1",
		Result: "failed",
		Err:    errors.New("unsupported pair"),
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CorrelationID != "corr-2" {
		t.Fatalf("expected most-recent-first order, got %+v", entries[0])
	}
	if entries[0].Err == nil || entries[0].Err.Error() != "unsupported pair" {
		t.Fatalf("expected recorded error text, got %v", entries[0].Err)
	}
	if entries[1].BytesOut != 120 {
		t.Fatalf("expected bytes_out 120, got %d", entries[1].BytesOut)
	}
}
