package gwconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("EPCISCONV_BIND", "0.0.0.0:9090")

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("bind: ${EPCISCONV_BIND}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bind != "0.0.0.0:9090" {
		t.Fatalf("expected expanded bind, got %q", cfg.Bind)
	}
	if cfg.ChunkSize != 8192 {
		t.Fatalf("expected default chunk size 8192, got %d", cfg.ChunkSize)
	}
	if cfg.WorkerPoolSize != 10 {
		t.Fatalf("expected default worker pool size 10, got %d", cfg.WorkerPoolSize)
	}
}

func TestLoadRejectsNegativeChunkSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a negative chunk_size")
	}
}

func TestDefaultPopulatesAllDefaults(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Bind == "" || cfg.ChunkSize == 0 || cfg.WorkerPoolSize == 0 {
		t.Fatalf("expected Default() to fill every field, got %#v", cfg)
	}
}
