package controllers

import (
	"errors"
	"net/http"

	"github.com/jacksonlee411/community-portal/internal/routing"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/jacksonlee411/community-portal/modules/profile/services"
	"github.com/jacksonlee411/community-portal/pkg/httperr"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassPublicAPI, status, code, message)
}

// statusFor maps service errors onto HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case httperr.IsBadRequest(err):
		return http.StatusBadRequest, "bad_request"
	case types.IsUnknownField(err):
		return http.StatusNotFound, "unknown_field"
	case types.IsTypeMismatch(err):
		return http.StatusUnprocessableEntity, "type_mismatch"
	case types.IsValidation(err):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrNotEditing):
		return http.StatusConflict, "not_editing"
	case errors.Is(err, services.ErrAvatarsDisabled):
		return http.StatusNotImplemented, "avatars_disabled"
	case types.IsStorage(err):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
