package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacksonlee411/community-portal/internal/config"
	"github.com/jacksonlee411/community-portal/internal/routing"
	"github.com/jacksonlee411/community-portal/modules/profile/presentation/controllers"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"go.uber.org/zap"
)

const (
	ownerID  = "0192f0a1-7c3e-7b2a-9c4d-1e2f3a4b5c6d"
	memberID = "0192f0a1-7c3e-7b2a-9c4d-bbbbbbbbbbbb"
)

func newTestHandler(t *testing.T, az authorizer) http.Handler {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	deps, err := OpenDependencies(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	t.Cleanup(deps.Close)
	svc, err := deps.Service(zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	h, err := NewHandlerWithOptions(HandlerOptions{Config: cfg, Service: svc, Authorizer: az})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func do(h http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		req.Header.Set(controllers.HeaderMemberID, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_RoleGating(t *testing.T) {
	h := newTestHandler(t, nil)
	profile := "/api/v1/profiles/" + ownerID

	cases := []struct {
		name   string
		method string
		path   string
		caller string
		body   string
		status int
	}{
		{"anonymous reads fields", http.MethodGet, "/api/v1/fields", "", "", http.StatusOK},
		{"anonymous reads profile", http.MethodGet, profile, "", "", http.StatusOK},
		{"anonymous cannot search", http.MethodGet, "/api/v1/members/search?q=x", "", "", http.StatusForbidden},
		{"member searches", http.MethodGet, "/api/v1/members/search?q=x", memberID, "", http.StatusOK},
		{"member cannot edit", http.MethodPost, profile + "/edit", memberID, "", http.StatusForbidden},
		{"member cannot read privacy", http.MethodGet, profile + "/privacy", memberID, "", http.StatusForbidden},
		{"member cannot toggle", http.MethodPost, profile + "/privacy/showEmail/toggle", memberID, "", http.StatusForbidden},
		{"member cannot upload", http.MethodPut, profile + "/avatar", memberID, "x", http.StatusForbidden},
		{"owner reads privacy", http.MethodGet, profile + "/privacy", ownerID, "", http.StatusOK},
		{"owner edits", http.MethodPost, profile + "/edit", ownerID, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, tc.caller, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestHandler_EditCommitThroughRouter(t *testing.T) {
	h := newTestHandler(t, nil)
	profile := "/api/v1/profiles/" + ownerID

	if rec := do(h, http.MethodPost, profile+"/edit", ownerID, ""); rec.Code != http.StatusOK {
		t.Fatalf("start status=%d", rec.Code)
	}
	if rec := do(h, http.MethodPatch, profile+"/edit", ownerID, `{"key":"fullName","value":"John Doe"}`); rec.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodPost, profile+"/edit/commit", ownerID, ""); rec.Code != http.StatusOK {
		t.Fatalf("commit status=%d", rec.Code)
	}
	rec := do(h, http.MethodGet, profile, memberID, "")
	if !strings.Contains(rec.Body.String(), "John Doe") {
		t.Fatalf("body=%s", rec.Body.String())
	}

	rec = do(h, http.MethodPost, profile+"/privacy/showEmail/toggle", ownerID, "")
	var toggled struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil || !toggled.Enabled {
		t.Fatalf("toggle body=%s err=%v", rec.Body.String(), err)
	}
}

func TestHandler_NotFoundAndMethod(t *testing.T) {
	h := newTestHandler(t, nil)
	rec := do(h, http.MethodGet, "/api/v1/unknown", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	rec = do(h, http.MethodDelete, "/api/v1/profiles/"+ownerID, ownerID, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
}

type stubAuthorizer struct {
	allowed  bool
	enforced bool
	err      error
}

func (s stubAuthorizer) Authorize(string, string, string, string) (bool, bool, error) {
	return s.allowed, s.enforced, s.err
}

func TestHandler_AuthorizerModes(t *testing.T) {
	shadow := newTestHandler(t, stubAuthorizer{allowed: false, enforced: false})
	if rec := do(shadow, http.MethodGet, "/api/v1/profiles/"+ownerID+"/privacy", memberID, ""); rec.Code != http.StatusOK {
		t.Fatalf("shadow status=%d", rec.Code)
	}

	broken := newTestHandler(t, stubAuthorizer{err: errors.New("boom")})
	rec := do(broken, http.MethodGet, "/api/v1/fields", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	var env routing.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Code != "authz_error" {
		t.Fatalf("env=%+v err=%v", env, err)
	}
}

func TestRoutes_DeclaredInAllowlist(t *testing.T) {
	path, err := resolveConfigPath("", "config/routing/allowlist.yaml")
	if err != nil {
		t.Fatal(err)
	}
	a, err := routing.LoadAllowlist(path)
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewProfileService(services.ProfileServiceOptions{})
	seen := map[string]bool{}
	for _, rt := range routes(controllers.NewProfileController(svc, nil)) {
		if !a.Allows(entrypointServer, rt.method, rt.path) {
			t.Fatalf("%s %s missing from allowlist", rt.method, rt.path)
		}
		key := rt.method + " " + rt.path
		if seen[key] {
			t.Fatalf("duplicate route %s", key)
		}
		seen[key] = true
	}
	declared := 0
	for _, r := range a.Entrypoints[entrypointServer].Routes {
		declared += len(r.Methods)
	}
	if declared != len(seen) {
		t.Fatalf("allowlist declares %d routes, server registers %d", declared, len(seen))
	}
}

func TestNewHandlerWithOptions_Errors(t *testing.T) {
	if _, err := NewHandlerWithOptions(HandlerOptions{}); err == nil {
		t.Fatal("expected missing service error")
	}
	svc := services.NewProfileService(services.ProfileServiceOptions{})
	_, err := NewHandlerWithOptions(HandlerOptions{
		Service: svc,
		Config:  config.Config{AllowlistPath: "/nonexistent/allowlist.yaml"},
	})
	if err == nil {
		t.Fatal("expected allowlist error")
	}
	_, err = NewHandlerWithOptions(HandlerOptions{
		Service: svc,
		Config:  config.Config{AuthzMode: "disabled"},
	})
	if err == nil {
		t.Fatal("expected disabled mode to require unlocking")
	}
}

func TestOpenDependencies_BadRedisURL(t *testing.T) {
	cfg := config.Config{StorageBackend: config.StorageMemory, RedisURL: "not-a-url"}
	if _, err := OpenDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected redis error")
	}
	var d *Dependencies
	if _, err := d.Service(nil); err == nil {
		t.Fatal("expected error for nil dependencies")
	}
}
