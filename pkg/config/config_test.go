package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Indexer.EmbedConcurrency <= 0 {
		t.Errorf("default embed concurrency = %d, want positive", cfg.Indexer.EmbedConcurrency)
	}
}

func TestLoadRejectsZeroEmbedConcurrency(t *testing.T) {
	path := writeConfig(t, "indexer:\n  embedConcurrency: 0\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for embedConcurrency 0")
	}
	if !strings.Contains(err.Error(), "embedConcurrency") {
		t.Errorf("error = %v, want it to name embedConcurrency", err)
	}
}

func TestLoadRejectsOversizedOverlap(t *testing.T) {
	path := writeConfig(t, "indexer:\n  maxChunkChars: 100\n  chunkOverlapChars: 60\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for overlap at or above half the budget")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CS_SERVER_PORT", "9999")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want the env override 9999", cfg.Server.Port)
	}
}
