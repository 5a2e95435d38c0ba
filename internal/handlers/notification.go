package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/notification"
)

// NotificationHandler exposes delivery history and the internal event ingress.
type NotificationHandler struct {
	history   *notification.HistoryService
	processor *notification.Processor
	logger    zerolog.Logger
}

func NewNotificationHandler(history *notification.HistoryService, processor *notification.Processor, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		history:   history,
		processor: processor,
		logger:    logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	eventID, err := uuidVar(r, "eventId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event id")
		return
	}
	history, err := h.history.ListByEvent(r.Context(), orgID, eventID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list notification history")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history))
}

func (h *NotificationHandler) ListByEndpoint(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	endpointID, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid endpoint id")
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, h.logger, err, "Invalid page")
		return
	}
	history, err := h.history.ListByEndpoint(r.Context(), orgID, endpointID, page)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list notification history")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history))
}

func (h *NotificationHandler) Details(w http.ResponseWriter, r *http.Request) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return
	}
	historyID, err := uuidVar(r, "id")
	if err != nil {
		writeError(w, h.logger, err, "Invalid history id")
		return
	}
	details, err := h.history.GetDetails(r.Context(), orgID, historyID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to get notification details")
		return
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, details)
}

// Ingest processes an inbound event synchronously and answers with the
// recorded history rows.
func (h *NotificationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var evt notification.InboundEvent
	if err := decodeJSON(r, &evt); err != nil {
		writeError(w, h.logger, err, "Invalid request body")
		return
	}
	result, err := h.processor.Process(r.Context(), evt)
	if err != nil {
		writeError(w, h.logger, err, "Failed to process event")
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}
