package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

// CatalogHandler registers bundles, applications and event types. Routes are
// restricted to platform admins.
type CatalogHandler struct {
	repo   repository.CatalogRepository
	logger zerolog.Logger
}

func NewCatalogHandler(repo repository.CatalogRepository, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "catalog").Logger(),
	}
}

func (h *CatalogHandler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	var bundle models.Bundle
	if err := decodeJSON(r, &bundle); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if bundle.Name == "" {
		writeError(w, h.logger, apperror.Invalid("bundle name is required"), "Invalid bundle")
		return
	}
	if err := h.repo.CreateBundle(r.Context(), &bundle); err != nil {
		writeError(w, h.logger, err, "Failed to create bundle")
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

func (h *CatalogHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var app models.Application
	if err := decodeJSON(r, &app); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if app.Name == "" {
		writeError(w, h.logger, apperror.Invalid("application name is required"), "Invalid application")
		return
	}
	if err := h.repo.CreateApplication(r.Context(), &app); err != nil {
		writeError(w, h.logger, err, "Failed to create application")
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *CatalogHandler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	var eventType models.EventType
	if err := decodeJSON(r, &eventType); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if eventType.Name == "" {
		writeError(w, h.logger, apperror.Invalid("event type name is required"), "Invalid event type")
		return
	}
	if err := h.repo.CreateEventType(r.Context(), &eventType); err != nil {
		writeError(w, h.logger, err, "Failed to create event type")
		return
	}
	writeJSON(w, http.StatusCreated, eventType)
}

func (h *CatalogHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	appID, err := uuidVar(r, "applicationId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid application id")
		return
	}
	eventTypes, err := h.repo.ListEventTypes(r.Context(), appID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list event types")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(eventTypes))
}
