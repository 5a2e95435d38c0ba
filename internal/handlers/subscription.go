package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/authz"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/subscription"
)

type SubscriptionHandler struct {
	service *subscription.Service
	logger  zerolog.Logger
}

func NewSubscriptionHandler(service *subscription.Service, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		logger:  logger.With().Str("handler", "subscription").Logger(),
	}
}

// user resolves the org and user of the caller. Subscriptions are keyed by username.
func (h *SubscriptionHandler) user(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	orgID, ok := requireOrg(w, r)
	if !ok {
		return "", "", false
	}
	id, _ := authz.IdentityFromRequest(r)
	if id.Username == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Missing username"})
		return "", "", false
	}
	return orgID, id.Username, true
}

func subscriptionTypeVar(r *http.Request) models.SubscriptionType {
	return models.SubscriptionType(strings.ToUpper(strings.TrimSpace(mux.Vars(r)["type"])))
}

func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, true)
}

func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.set(w, r, false)
}

func (h *SubscriptionHandler) set(w http.ResponseWriter, r *http.Request, subscribe bool) {
	orgID, userID, ok := h.user(w, r)
	if !ok {
		return
	}
	eventTypeID, err := uuidVar(r, "eventTypeId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event type id")
		return
	}

	apply := h.service.Unsubscribe
	if subscribe {
		apply = h.service.Subscribe
	}
	applied, err := apply(r.Context(), orgID, userID, eventTypeID, subscriptionTypeVar(r))
	if err != nil {
		writeError(w, h.logger, err, "Failed to update subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := h.user(w, r)
	if !ok {
		return
	}
	eventTypeID, err := uuidVar(r, "eventTypeId")
	if err != nil {
		writeError(w, h.logger, err, "Invalid event type id")
		return
	}
	subscribed, err := h.service.IsSubscribed(r.Context(), orgID, userID, eventTypeID, subscriptionTypeVar(r))
	if err != nil {
		writeError(w, h.logger, err, "Failed to read subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := h.user(w, r)
	if !ok {
		return
	}
	subs, err := h.service.ListSubscriptions(r.Context(), orgID, userID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

func (h *SubscriptionHandler) Types(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.AvailableTypes())
}
