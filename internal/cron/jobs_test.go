package cron

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/epcisconv/internal/router"
)

const tagDoc20 = `<?xml version="1.0" encoding="UTF-8"?>
<epcis:EPCISDocument xmlns:epcis="urn:epcglobal:epcis:xsd:2" schemaVersion="2.0" creationDate="2024-01-01T00:00:00.000Z">
<EPCISBody><EventList>
<ObjectEvent>
<eventTime>2024-01-01T00:00:00.000Z</eventTime>
<eventTimeZoneOffset>+00:00</eventTimeZoneOffset>
<epcList><epc>urn:epc:id:sgtin:0614141.107346.2017</epc></epcList>
<action>OBSERVE</action>
</ObjectEvent>
</EventList></EPCISBody>
</epcis:EPCISDocument>`

func TestWatchJobNameAndSchedule(t *testing.T) {
	t.Parallel()

	j := &WatchJob{InputDir: "/tmp/in"}
	if got, want := j.Name(), "watch:/tmp/in"; got != want {
		t.Errorf("name = %q, want %q", got, want)
	}
	if got, want := j.Schedule(), "*/1 * * * *"; got != want {
		t.Errorf("schedule = %q, want %q", got, want)
	}

	j.ScheduleExpr = "*/5 * * * *"
	if got, want := j.Schedule(), "*/5 * * * *"; got != want {
		t.Errorf("schedule override = %q, want %q", got, want)
	}
}

func TestWatchJobConvertsNewFiles(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(inDir, "doc1.xml"), []byte(tagDoc20), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "ignore.txt"), []byte("not a document"), 0o644); err != nil {
		t.Fatal(err)
	}

	j := &WatchJob{
		Logger:    slog.Default(),
		Router:    router.New(),
		InputDir:  inDir,
		OutputDir: outDir,
		Spec: router.ConversionSpec{
			FromFmt: router.Tag, FromRev: router.Rev20,
			ToFmt: router.Object, ToRev: router.Rev20,
		},
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	outPath := filepath.Join(outDir, "doc1.json")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected output file %s: %v", outPath, err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty converted output")
	}
	if _, err := os.Stat(filepath.Join(outDir, "ignore.json")); err == nil {
		t.Error("non-document file should not have been converted")
	}
}

func TestWatchJobSkipsUnchangedFiles(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	outDir := t.TempDir()
	inPath := filepath.Join(inDir, "doc1.xml")
	if err := os.WriteFile(inPath, []byte(tagDoc20), 0o644); err != nil {
		t.Fatal(err)
	}

	j := &WatchJob{
		Logger:    slog.Default(),
		Router:    router.New(),
		InputDir:  inDir,
		OutputDir: outDir,
		Spec: router.ConversionSpec{
			FromFmt: router.Tag, FromRev: router.Rev20,
			ToFmt: router.Object, ToRev: router.Rev20,
		},
	}

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(outDir, "doc1.json")
	if _, err := os.Stat(outPath); err != nil {
		t.Fatal(err)
	}

	// Remove the output and re-run without touching the input: a second
	// tick over an unchanged file must not recreate it.
	if err := os.Remove(outPath); err != nil {
		t.Fatal(err)
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("expected unchanged file to be skipped on second tick, stat err = %v", err)
	}

	// Touching the input's modtime should cause reprocessing.
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(inPath, future, future); err != nil {
		t.Fatal(err)
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected output to be recreated after input modtime changed: %v", err)
	}
}
