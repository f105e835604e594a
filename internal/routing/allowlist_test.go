package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAllowlistYAML_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"yaml":           "\xff",
		"version":        "version: 2\nentrypoints: {}",
		"entrypoints":    "version: 1",
		"no methods":     "version: 1\nentrypoints:\n  server:\n    routes:\n      - {path: /health, route_class: ops}\n",
		"unknown method": "version: 1\nentrypoints:\n  server:\n    routes:\n      - {path: /health, methods: [FETCH], route_class: ops}\n",
	}
	for name, doc := range cases {
		if _, err := ParseAllowlistYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestAllowlist_Allows(t *testing.T) {
	t.Parallel()

	a, err := ParseAllowlistYAML([]byte(`
version: 1
entrypoints:
  server:
    routes:
      - {path: /health, methods: [GET], route_class: ops}
      - {path: "/api/v1/profiles/{id}", methods: [get], route_class: public_api}
`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !a.Allows("server", "GET", "/api/v1/profiles/{id}") {
		t.Fatal("expected allowed")
	}
	if a.Allows("server", "POST", "/health") || a.Allows("cli", "GET", "/health") {
		t.Fatal("unexpected allow")
	}
}

func TestLoadAllowlist_RepoFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "..", "config", "routing", "allowlist.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	a, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := NewClassifier(a, "server"); err != nil {
		t.Fatalf("classifier: %v", err)
	}

	if _, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
