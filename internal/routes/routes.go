package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/notifications-api/internal/authz"
	"github.com/stanstork/notifications-api/internal/handlers"
)

const APIPrefix = "/api/notifications/v1"

type Handlers struct {
	Auth                  *handlers.AuthHandler
	BehaviorGroups        *handlers.BehaviorGroupHandler
	DefaultBehaviorGroups *handlers.DefaultBehaviorGroupHandler
	Subscriptions         *handlers.SubscriptionHandler
	Endpoints             *handlers.EndpointHandler
	Notifications         *handlers.NotificationHandler
	Catalog               *handlers.CatalogHandler
	// Health pings the database; nil for embedded storage.
	Health handlers.Pinger
}

// NewRouter sets up the API routes
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck(h.Health)).Methods(http.MethodGet)

	api := router.PathPrefix(APIPrefix).Subrouter()
	api.Use(h.Auth.JWTMiddleware)

	// Platform routes
	internal := api.PathPrefix("/internal").Subrouter()
	internal.Use(authz.RequireRole(authz.RolePlatformAdmin))

	dbg := h.DefaultBehaviorGroups
	internal.HandleFunc("/behaviorGroups/default", dbg.Create).Methods(http.MethodPost)
	internal.HandleFunc("/behaviorGroups/default/{id}", dbg.Update).Methods(http.MethodPut)
	internal.HandleFunc("/behaviorGroups/default/{id}", dbg.Delete).Methods(http.MethodDelete)
	internal.HandleFunc("/behaviorGroups/default/{id}/actions", dbg.UpdateActions).Methods(http.MethodPut)
	internal.HandleFunc("/behaviorGroups/default/{id}/eventTypes/{eventTypeId}", dbg.Link).Methods(http.MethodPut)
	internal.HandleFunc("/behaviorGroups/default/{id}/eventTypes/{eventTypeId}", dbg.Unlink).Methods(http.MethodDelete)
	internal.HandleFunc("/bundles/{bundleId}/behaviorGroups/default", dbg.ListByBundle).Methods(http.MethodGet)

	internal.HandleFunc("/bundles", h.Catalog.CreateBundle).Methods(http.MethodPost)
	internal.HandleFunc("/applications", h.Catalog.CreateApplication).Methods(http.MethodPost)
	internal.HandleFunc("/eventTypes", h.Catalog.CreateEventType).Methods(http.MethodPost)
	internal.HandleFunc("/applications/{applicationId}/eventTypes", h.Catalog.ListEventTypes).Methods(http.MethodGet)

	internal.HandleFunc("/endpoints", h.Endpoints.CreateSystem).Methods(http.MethodPost)
	internal.HandleFunc("/events", h.Notifications.Ingest).Methods(http.MethodPost)

	// Behavior groups of the caller's org
	bg := h.BehaviorGroups
	api.HandleFunc("/behaviorGroups", bg.Create).Methods(http.MethodPost)
	api.HandleFunc("/behaviorGroups/{id}", bg.Update).Methods(http.MethodPut)
	api.HandleFunc("/behaviorGroups/{id}", bg.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/behaviorGroups/{id}", bg.Get).Methods(http.MethodGet)
	api.HandleFunc("/behaviorGroups/{id}/actions", bg.UpdateActions).Methods(http.MethodPut)
	api.HandleFunc("/behaviorGroups/{id}/eventTypes", bg.ListEventTypes).Methods(http.MethodGet)
	api.HandleFunc("/bundles/{bundleId}/behaviorGroups", bg.ListByBundle).Methods(http.MethodGet)
	api.HandleFunc("/eventTypes/{eventTypeId}/behaviorGroups", bg.UpdateEventTypeBehaviors).Methods(http.MethodPut)
	api.HandleFunc("/eventTypes/{eventTypeId}/behaviorGroups", bg.ListByEventType).Methods(http.MethodGet)

	// Subscriptions
	subs := h.Subscriptions
	api.HandleFunc("/subscriptions", subs.List).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/types", subs.Types).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{eventTypeId}/{type}", subs.Subscribe).Methods(http.MethodPut)
	api.HandleFunc("/subscriptions/{eventTypeId}/{type}", subs.Unsubscribe).Methods(http.MethodDelete)
	api.HandleFunc("/subscriptions/{eventTypeId}/{type}", subs.Get).Methods(http.MethodGet)

	// Endpoints
	ep := h.Endpoints
	api.HandleFunc("/endpoints", ep.Create).Methods(http.MethodPost)
	api.HandleFunc("/endpoints", ep.List).Methods(http.MethodGet)
	api.HandleFunc("/endpoints/{id}", ep.Get).Methods(http.MethodGet)
	api.HandleFunc("/endpoints/{id}", ep.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/endpoints/{id}/enable", ep.Enable).Methods(http.MethodPut)
	api.HandleFunc("/endpoints/{id}/enable", ep.Disable).Methods(http.MethodDelete)

	// History
	n := h.Notifications
	api.HandleFunc("/events/{eventId}/history", n.ListByEvent).Methods(http.MethodGet)
	api.HandleFunc("/endpoints/{id}/history", n.ListByEndpoint).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}/details", n.Details).Methods(http.MethodGet)

	return router
}
