package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Matching.Technique != "rtree" || cfg.Matching.MaxAttempts != 3 {
		t.Errorf("matching = %+v", cfg.Matching)
	}
	if cfg.Matching.RetryInterval != 5*time.Second {
		t.Errorf("retry_interval = %v, want 5s", cfg.Matching.RetryInterval)
	}
	if cfg.DB.Enabled || cfg.Redis.Enabled {
		t.Errorf("external stores should be disabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
db:
  enabled: true
  host: db
  dbname: matcha
matching:
  technique: quadtree
  max_attempts: 0
log:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.DB.Enabled || cfg.DB.Host != "db" || cfg.DB.Port != "6543" {
		t.Errorf("db = %+v", cfg.DB)
	}
	if got, want := cfg.DB.DSN(), "postgres://postgres:postgres@db:6543/matcha?sslmode=disable"; got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
	if cfg.Matching.Technique != "quadtree" {
		t.Errorf("technique = %q, want quadtree", cfg.Matching.Technique)
	}
	if cfg.Matching.MaxAttempts != 1 {
		t.Errorf("max_attempts = %d, want clamp to 1", cfg.Matching.MaxAttempts)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
