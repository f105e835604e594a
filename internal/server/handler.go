package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jacksonlee411/community-portal/internal/config"
	"github.com/jacksonlee411/community-portal/internal/routing"
	"github.com/jacksonlee411/community-portal/modules/profile/presentation/controllers"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"github.com/jacksonlee411/community-portal/pkg/authz"
	"go.uber.org/zap"
)

const entrypointServer = "server"

type HandlerOptions struct {
	Config  config.Config
	Service *services.ProfileService
	Logger  *zap.Logger

	// Authorizer overrides the casbin files named in Config.
	Authorizer authorizer
}

// route is one API endpoint with the casbin object/action guarding it. An
// empty object leaves the route open.
type route struct {
	rc      routing.RouteClass
	method  string
	path    string
	object  string
	action  string
	handler http.HandlerFunc
}

func routes(c *controllers.ProfileController) []route {
	return []route{
		{routing.RouteClassOps, http.MethodGet, "/health", "", "", handleHealth},
		{routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/fields", authz.ObjectProfileFields, authz.ActionRead, c.HandleFields},
		{routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/members/search", authz.ObjectMembersSearch, authz.ActionRead, c.HandleSearch},
		{routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/profiles/{id}", authz.ObjectProfileRecord, authz.ActionRead, c.HandleProfile},
		{routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/profiles/{id}/edit", authz.ObjectProfileRecord, authz.ActionWrite, c.HandleStartEdit},
		{routing.RouteClassPublicAPI, http.MethodPatch, "/api/v1/profiles/{id}/edit", authz.ObjectProfileRecord, authz.ActionWrite, c.HandleUpdateDraft},
		{routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/profiles/{id}/edit/commit", authz.ObjectProfileRecord, authz.ActionWrite, c.HandleCommit},
		{routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/profiles/{id}/edit/discard", authz.ObjectProfileRecord, authz.ActionWrite, c.HandleDiscard},
		{routing.RouteClassPublicAPI, http.MethodGet, "/api/v1/profiles/{id}/privacy", authz.ObjectProfilePrivacy, authz.ActionRead, c.HandlePrivacy},
		{routing.RouteClassPublicAPI, http.MethodPost, "/api/v1/profiles/{id}/privacy/{key}/toggle", authz.ObjectProfilePrivacy, authz.ActionWrite, c.HandleTogglePrivacy},
		{routing.RouteClassPublicAPI, http.MethodPut, "/api/v1/profiles/{id}/avatar", authz.ObjectProfileAvatar, authz.ActionWrite, c.HandleAvatar},
	}
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	if opts.Service == nil {
		return nil, errors.New("server: profile service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allowlistPath, err := resolveConfigPath(opts.Config.AllowlistPath, "config/routing/allowlist.yaml")
	if err != nil {
		return nil, err
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, entrypointServer)
	if err != nil {
		return nil, err
	}

	az := opts.Authorizer
	if az == nil {
		loaded, err := loadAuthorizer(opts.Config)
		if err != nil {
			return nil, err
		}
		az = loaded
	}

	controller := controllers.NewProfileController(opts.Service, logger)
	router := routing.NewRouter(classifier, logger)
	for _, rt := range routes(controller) {
		if !a.Allows(entrypointServer, rt.method, rt.path) {
			return nil, fmt.Errorf("server: route %s %s missing from allowlist", rt.method, rt.path)
		}
		var h http.Handler = rt.handler
		if rt.object != "" {
			h = withAuthz(az, controller.Caller, logger, rt.object, rt.action, h)
		}
		router.Handle(rt.rc, rt.method, rt.path, h)
	}

	return withRequestLog(logger, router), nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	routing.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
