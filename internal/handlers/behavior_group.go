package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
)

type behaviorGroupRequest struct {
	DisplayName string    `json:"display_name"`
	BundleID    uuid.UUID `json:"bundle_id"`
}

// BehaviorGroupHandler serves the behavior groups of the caller's org.
type BehaviorGroupHandler struct {
	service *behavior.Service
	logger  zerolog.Logger
}

func NewBehaviorGroupHandler(service *behavior.Service, logger zerolog.Logger) *BehaviorGroupHandler {
	return &BehaviorGroupHandler{
		service: service,
		logger:  logger.With().Str("handler", "behavior_group").Logger(),
	}
}

func (h *BehaviorGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	var req behaviorGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}

	group, err := h.service.CreateBehaviorGroup(r.Context(), orgID, models.BehaviorGroup{
		DisplayName: req.DisplayName,
		BundleID:    req.BundleID,
		AccountID:   accountPtr(r),
	})
	if err != nil {
		writeError(w, h.logger, err, "Failed to create behavior group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *BehaviorGroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
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

	updated, err := h.service.UpdateBehaviorGroup(r.Context(), orgID, models.BehaviorGroup{ID: id, DisplayName: req.DisplayName})
	writeBool(w, h.logger, updated, err, "Failed to update behavior group")
}

func (h *BehaviorGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	deleted, err := h.service.DeleteBehaviorGroup(r.Context(), orgID, id)
	writeBool(w, h.logger, deleted, err, "Failed to delete behavior group")
}

func (h *BehaviorGroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	group, err := h.service.GetBehaviorGroup(r.Context(), orgID, id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to get behavior group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *BehaviorGroupHandler) ListByBundle(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	bundleID, err := uuidVar(r, "bundleId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid bundle id")
		return
	}
	groups, err := h.service.FindBehaviorGroupsByBundleID(r.Context(), orgID, bundleID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list behavior groups")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(groups))
}

func (h *BehaviorGroupHandler) UpdateActions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
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
	if err := h.service.UpdateBehaviorGroupActions(r.Context(), orgID, id, endpointIDs); err != nil {
		writeError(w, h.logger, err, "Failed to update behavior group actions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BehaviorGroupHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	id, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid behavior group id")
		return
	}
	eventTypes, err := h.service.FindEventTypesByBehaviorGroupID(r.Context(), orgID, id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list event types")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(eventTypes))
}

func (h *BehaviorGroupHandler) UpdateEventTypeBehaviors(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	eventTypeID, err := uuidVar(r, "eventTypeId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event type id")
		return
	}
	var groupIDs []uuid.UUID
	if err := decodeJSON(r, &groupIDs); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	if err := h.service.UpdateEventTypeBehaviors(r.Context(), orgID, eventTypeID, groupIDs); err != nil {
		writeError(w, h.logger, err, "Failed to update event type behaviors")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BehaviorGroupHandler) ListByEventType(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	eventTypeID, err := uuidVar(r, "eventTypeId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event type id")
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err, "Invalid page")
		return
	}
	groups, err := h.service.FindBehaviorGroupsByEventTypeID(r.Context(), orgID, eventTypeID, page)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list behavior groups")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(groups))
}

// writeBool answers a mutation that reports whether it matched a row. No match
// is a 404.
func writeBool(w http.ResponseWriter, logger zerolog.Logger, matched bool, err error, msg string) {
	if err != nil {
		writeError(w, logger, err, msg)
		return
	}
	if !matched {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
