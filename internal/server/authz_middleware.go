package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/community-portal/internal/config"
	"github.com/jacksonlee411/community-portal/internal/routing"
	"github.com/jacksonlee411/community-portal/pkg/authz"
	"go.uber.org/zap"
)

func loadAuthorizer(cfg config.Config) (*authz.Authorizer, error) {
	modelPath, err := resolveConfigPath(cfg.AuthzModelPath, "config/access/model.conf")
	if err != nil {
		return nil, err
	}
	policyPath, err := resolveConfigPath(cfg.AuthzPolicyPath, "config/access/policy.csv")
	if err != nil {
		return nil, err
	}
	mode, err := authz.ParseMode(cfg.AuthzMode, cfg.AuthzAllowDisabled)
	if err != nil {
		return nil, err
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

// resolveConfigPath returns configured when set, otherwise fallback searched
// upwards from the working directory so tests can run from package dirs.
func resolveConfigPath(configured string, fallback string) (string, error) {
	if configured != "" && configured != fallback {
		return configured, nil
	}
	path := fallback
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + fallback + " not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

// withAuthz gates one route. The caller is owner of the {id} profile when the
// gateway-supplied member id matches it.
func withAuthz(a authorizer, caller func(*http.Request) string, logger *zap.Logger, object string, action string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := authz.RoleFor(caller(r), r.PathValue("id"))
		subject := authz.SubjectFromRole(role)

		allowed, enforced, err := a.Authorize(subject, authz.DomainGlobal, object, action)
		if err != nil {
			logger.Error("authz error", zap.String("object", object), zap.String("action", action), zap.Error(err))
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if !allowed {
			if enforced {
				routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			logger.Warn("authz shadow deny",
				zap.String("subject", subject),
				zap.String("object", object),
				zap.String("action", action),
				zap.String("path", r.URL.Path),
			)
		}
		next.ServeHTTP(w, r)
	})
}
