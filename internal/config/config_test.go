package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StorageBackend != StorageMemory || cfg.LogFormat != "json" || cfg.AuthzMode != "enforce" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.AllowlistPath != "config/routing/allowlist.yaml" || cfg.AuthzAllowDisabled {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	doc := "HTTP_ADDR: \":9090\"\nLOG_LEVEL: debug\nMEILI_URL: http://meili:7700\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORAGE_BACKEND", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://app@db/profiles")
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "true")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.MeiliURL != "http://meili:7700" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || cfg.StorageBackend != StoragePostgres || !cfg.AuthzAllowDisabled {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected missing DATABASE_URL error")
	}

	t.Setenv("STORAGE_BACKEND", "mongo")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected unknown backend error")
	}

	t.Setenv("STORAGE_BACKEND", "")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("HTTP_ADDR: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
