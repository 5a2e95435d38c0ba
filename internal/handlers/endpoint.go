package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

type EndpointHandler struct {
	repo   repository.EndpointRepository
	logger zerolog.Logger
}

func NewEndpointHandler(repo repository.EndpointRepository, logger zerolog.Logger) *EndpointHandler {
	return &EndpointHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "endpoint").Logger(),
	}
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var ep models.Endpoint
	if err := decodeJSON(r, &ep); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	ep.OrgID = &orgID
	ep.AccountID = accountPtr(r)
	h.create(w, r, ep)
}

// CreateSystem creates an org-less EMAIL_SUBSCRIPTION or DRAWER endpoint that
// default behavior groups can reference.
func (h *EndpointHandler) CreateSystem(w http.ResponseWriter, r *http.Request) {
	var ep models.Endpoint
	if err := decodeJSON(r, &ep); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if !ep.Type.IsSystem() {
		writeError(w, h.logger, apperror.Invalid("only %s and %s endpoints can be created without an org",
			models.EndpointTypeEmailSubscription, models.EndpointTypeDrawer), "Invalid endpoint type")
		return
	}
	ep.OrgID = nil
	ep.AccountID = nil
	h.create(w, r, ep)
}

func (h *EndpointHandler) create(w http.ResponseWriter, r *http.Request, ep models.Endpoint) {
	ep.Enabled = true
	if err := h.repo.Create(r.Context(), &ep); err != nil {
		writeError(w, h.logger, err, "Failed to create endpoint")
		return
	}
	h.logger.Info().Str("endpoint_id", ep.ID.String()).Str("type", string(ep.Type)).Msg("endpoint created")
	writeJSON(w, http.StatusCreated, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err, "Invalid page")
		return
	}
	var types []models.EndpointType
	for _, raw := range r.URL.Query()["type"] {
		t, ok := models.ParseEndpointType(raw)
		if !ok {
			writeError(w, h.logger, apperror.Invalid("unknown endpoint type %q", raw), "Invalid endpoint type")
			return
		}
		types = append(types, t)
	}

	endpoints, err := h.repo.List(r.Context(), orgID, types, page)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list endpoints")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(endpoints))
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid endpoint id")
		return
	}
	ep, err := h.repo.Get(r.Context(), models.OrgScope(orgID), id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to get endpoint")
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *EndpointHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *EndpointHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid endpoint id")
		return
	}
	matched, err := h.repo.SetEnabled(r.Context(), orgID, id, enabled)
	writeNoContent(w, h.logger, matched, err, "Failed to update endpoint")
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid endpoint id")
		return
	}
	deleted, err := h.repo.Delete(r.Context(), orgID, id)
	writeNoContent(w, h.logger, deleted, err, "Failed to delete endpoint")
}

func writeNoContent(w http.ResponseWriter, logger zerolog.Logger, matched bool, err error, msg string) {
	if err != nil {
		writeError(w, logger, err, msg)
		return
	}
	if !matched {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
