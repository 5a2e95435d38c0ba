package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/authz"
	"github.com/stanstork/notifications-api/internal/models"
)

type errorResponse struct {
	Error string   `json:"error"`
	IDs   []string `json:"ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalidRequest:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status code. Unclassified errors are logged and
// reported with msg only.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	resp := errorResponse{Error: msg}

	var appErr *apperror.Error
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		resp.Error = appErr.Message
		resp.IDs = appErr.IDs
	}
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(msg)
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.Invalid("invalid request body")
	}
	return nil
}

func uuidVar(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(mux.Vars(r)[name])
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Invalid("%s must be a valid uuid", name)
	}
	return id, nil
}

func pageFromQuery(r *http.Request) (models.Page, error) {
	var page models.Page
	q := r.URL.Query()
	for key, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return models.Page{}, apperror.Invalid("%s must be a non-negative integer", key)
		}
		*dst = n
	}
	return page, nil
}

// requireOrg writes 401 and reports false when the caller carries no org.
func requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID, ok := authz.OrgIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Missing org context"})
		return "", false
	}
	return orgID, true
}

func accountPtr(r *http.Request) *string {
	id, ok := authz.IdentityFromRequest(r)
	if !ok || id.AccountID == "" {
		return nil
	}
	account := id.AccountID
	return &account
}
