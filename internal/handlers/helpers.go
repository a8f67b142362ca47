package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"converso-backend/internal/auth"
	"converso-backend/internal/services"
	"converso-backend/internal/store"
	"converso-backend/pkg/httputil"
)

// userIDFromRequest extracts the authenticated user id injected by the JWT
// middleware.
func userIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	return auth.GetUserIDFromContext(r.Context())
}

// conversationIDFromRequest parses the {conversationID} URL parameter.
func conversationIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "conversationID"))
}

// respondValidation writes a 422 with per-field messages when available.
func respondValidation(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		httputil.RespondValidationError(w, verr.Error(), verr.Fields)
		return
	}
	httputil.RespondValidationError(w, err.Error(), nil)
}

// respondServiceError maps conversation and message service errors to HTTP
// status codes. ErrUnauthorized covers both a foreign and a missing
// conversation, matching the registry's refusal to reveal which.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		httputil.RespondError(w, http.StatusForbidden, "You are not a participant of this conversation")
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrValidation):
		respondValidation(w, err)
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
