package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
)

// DefaultBehaviorGroupHandler serves the platform-managed default groups.
// Routes are restricted to platform admins.
type DefaultBehaviorGroupHandler struct {
	service *behavior.Service
	logger  zerolog.Logger
}

func NewDefaultBehaviorGroupHandler(service *behavior.Service, logger zerolog.Logger) *DefaultBehaviorGroupHandler {
	return &DefaultBehaviorGroupHandler{
		service: service,
		logger:  logger.With().Str("handler", "default_behavior_group").Logger(),
	}
}

func (h *DefaultBehaviorGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req behaviorGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	group, err := h.service.CreateDefaultBehaviorGroup(r.Context(), models.BehaviorGroup{
		DisplayName: req.DisplayName,
		BundleID:    req.BundleID,
		Default:     true,
	})
	if err != nil {
		writeError(w, h.logger, err, "Failed to create default behavior group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *DefaultBehaviorGroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	var req behaviorGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	updated, err := h.service.UpdateDefaultBehaviorGroup(r.Context(), models.BehaviorGroup{ID: id, DisplayName: req.DisplayName})
	writeBool(w, h.logger, updated, err, "Failed to update default behavior group")
}

func (h *DefaultBehaviorGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	deleted, err := h.service.DeleteDefaultBehaviorGroup(r.Context(), id)
	writeBool(w, h.logger, deleted, err, "Failed to delete default behavior group")
}

func (h *DefaultBehaviorGroupHandler) ListByBundle(w http.ResponseWriter, r *http.Request) {
	bundleID, err := uuidVar(r, "bundleId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid bundle id")
		return
	}
	groups, err := h.service.FindDefaultBehaviorGroupsByBundleID(r.Context(), bundleID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list default behavior groups")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(groups))
}

func (h *DefaultBehaviorGroupHandler) UpdateActions(w http.ResponseWriter, r *http.Request) {
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	var endpointIDs []uuid.UUID
	if err := decodeJSON(r, &endpointIDs); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if err := h.service.UpdateDefaultBehaviorGroupActions(r.Context(), id, endpointIDs); err != nil {
		writeError(w, h.logger, err, "Failed to update default behavior group actions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Link reports whether a new link was created; an existing link answers false.
func (h *DefaultBehaviorGroupHandler) Link(w http.ResponseWriter, r *http.Request) {
	groupID, eventTypeID, ok := h.pair(w, r)
	if !ok {
		return
	}
	linked, err := h.service.LinkEventTypeDefaultBehavior(r.Context(), eventTypeID, groupID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to link default behavior group")
		return
	}
	writeJSON(w, http.StatusOK, linked)
}

func (h *DefaultBehaviorGroupHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	groupID, eventTypeID, ok := h.pair(w, r)
	if !ok {
		return
	}
	unlinked, err := h.service.UnlinkEventTypeDefaultBehavior(r.Context(), eventTypeID, groupID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to unlink default behavior group")
		return
	}
	writeJSON(w, http.StatusOK, unlinked)
}

func (h *DefaultBehaviorGroupHandler) pair(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	groupID, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return uuid.Nil, uuid.Nil, false
	}
	eventTypeID, err := uuidVar(r, "eventTypeId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event type id")
		return uuid.Nil, uuid.Nil, false
	}
	return groupID, eventTypeID, true
}
