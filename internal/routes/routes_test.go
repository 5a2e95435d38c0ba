package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/notifications-api/internal/authz"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/handlers"
	"github.com/stanstork/notifications-api/internal/memstore"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/notification"
	"github.com/stanstork/notifications-api/internal/routes"
	"github.com/stanstork/notifications-api/internal/subscription"
)

const secret = "test-secret"

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := zerolog.Nop()
	store := memstore.New()
	history := memstore.NewHistory()
	engine := behavior.NewService(store, logger)
	subs := subscription.NewService(memstore.NewSubscriptions(), store, subscription.Features{}, logger)
	processor := notification.NewProcessor(store, engine, history, logger, map[models.EndpointType]notification.Notifier{
		models.EndpointTypeWebhook:           notification.NewLogNotifier(false, logger),
		models.EndpointTypeEmailSubscription: notification.NewSubscriptionNotifier(subs, logger),
	})

	router := routes.NewRouter(routes.Handlers{
		Auth:                  handlers.NewAuthHandler(secret, logger),
		BehaviorGroups:        handlers.NewBehaviorGroupHandler(engine, logger),
		DefaultBehaviorGroups: handlers.NewDefaultBehaviorGroupHandler(engine, logger),
		Subscriptions:         handlers.NewSubscriptionHandler(subs, logger),
		Endpoints:             handlers.NewEndpointHandler(store.Endpoints(), logger),
		Notifications:         handlers.NewNotificationHandler(notification.NewHistoryService(history, logger, 20, 200), processor, logger),
		Catalog:               handlers.NewCatalogHandler(store, logger),
	})
	return &server{t: t, handler: router}
}

func token(t *testing.T, orgID string, roles ...string) string {
	t.Helper()
	tok, err := handlers.SignToken(secret, authz.Identity{OrgID: orgID, AccountID: "123", Username: "jdoe", Roles: roles}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *server) do(method, path, tok string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, routes.APIPrefix+path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type catalog struct {
	bundle    models.Bundle
	eventType models.EventType
}

func (s *server) seed(admin, bundleName string) catalog {
	s.t.Helper()
	var c catalog
	rec := s.do(http.MethodPost, "/internal/bundles", admin, map[string]string{"name": bundleName})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(s.t, rec, &c.bundle)

	var app models.Application
	rec = s.do(http.MethodPost, "/internal/applications", admin, map[string]interface{}{"bundle_id": c.bundle.ID, "name": "policies"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(s.t, rec, &app)

	rec = s.do(http.MethodPost, "/internal/eventTypes", admin, map[string]interface{}{
		"application_id":        app.ID,
		"name":                  "policy-triggered",
		"subscribed_by_default": true,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(s.t, rec, &c.eventType)
	return c
}

func (s *server) webhook(tok string) models.Endpoint {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/endpoints", tok, map[string]interface{}{
		"name":       "hook",
		"type":       "webhook",
		"properties": map[string]interface{}{"url": "https://acme.example.com/hook", "method": "post"},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var ep models.Endpoint
	decode(s.t, rec, &ep)
	return ep
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/endpoints", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/endpoints", "not-a-token", nil).Code)

	forged, err := handlers.SignToken("other-secret", authz.Identity{OrgID: "acme", Username: "jdoe"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/endpoints", forged, nil).Code)

	expired, err := handlers.SignToken(secret, authz.Identity{OrgID: "acme", Username: "jdoe"}, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/endpoints", expired, nil).Code)

	rec := s.do(http.MethodPost, "/internal/bundles", token(t, "acme"), map[string]string{"name": "rhel"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/endpoints", token(t, "acme"), nil).Code)
}

func TestBehaviorGroupLifecycle(t *testing.T) {
	s := newServer(t)
	admin := token(t, "", authz.RolePlatformAdmin)
	acme := token(t, "acme")
	globex := token(t, "globex")
	c := s.seed(admin, "rhel")
	ep := s.webhook(acme)

	rec := s.do(http.MethodPost, "/behaviorGroups", acme, map[string]interface{}{"display_name": "Acme Alerts", "bundle_id": c.bundle.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var group models.BehaviorGroup
	decode(t, rec, &group)
	assert.Nil(t, group.Bundle)
	require.NotNil(t, group.AccountID)
	assert.Equal(t, "123", *group.AccountID)

	rec = s.do(http.MethodPost, "/behaviorGroups", acme, map[string]interface{}{"display_name": "Acme Alerts", "bundle_id": c.bundle.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/behaviorGroups/"+group.ID.String()+"/actions", acme, []uuid.UUID{ep.ID})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPut, "/eventTypes/"+c.eventType.ID.String()+"/behaviorGroups", acme, []uuid.UUID{group.ID})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	var linked []models.BehaviorGroup
	rec = s.do(http.MethodGet, "/eventTypes/"+c.eventType.ID.String()+"/behaviorGroups?limit=10", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &linked)
	require.Len(t, linked, 1)
	assert.Equal(t, group.ID, linked[0].ID)

	rec = s.do(http.MethodGet, "/eventTypes/"+c.eventType.ID.String()+"/behaviorGroups?limit=ten", acme, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var fetched models.BehaviorGroup
	rec = s.do(http.MethodGet, "/behaviorGroups/"+group.ID.String(), acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &fetched)
	require.Len(t, fetched.Actions, 1)
	assert.Equal(t, ep.ID, fetched.Actions[0].EndpointID)

	// Other orgs can neither see nor touch the group.
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/behaviorGroups/"+group.ID.String(), globex, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/behaviorGroups/"+group.ID.String(), globex, map[string]string{"display_name": "Mine"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/behaviorGroups/"+group.ID.String(), globex, nil).Code)

	rec = s.do(http.MethodPut, "/behaviorGroups/"+group.ID.String(), acme, map[string]string{"display_name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true\n", rec.Body.String())

	rec = s.do(http.MethodDelete, "/behaviorGroups/"+group.ID.String(), acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/behaviorGroups/"+group.ID.String(), acme, nil).Code)
}

func TestBundleMismatchListsOffendingGroups(t *testing.T) {
	s := newServer(t)
	admin := token(t, "", authz.RolePlatformAdmin)
	acme := token(t, "acme")
	rhel := s.seed(admin, "rhel")
	openshift := s.seed(admin, "openshift")

	rec := s.do(http.MethodPost, "/behaviorGroups", acme, map[string]interface{}{"display_name": "Clusters", "bundle_id": openshift.bundle.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var group models.BehaviorGroup
	decode(t, rec, &group)

	rec = s.do(http.MethodPut, "/eventTypes/"+rhel.eventType.ID.String()+"/behaviorGroups", acme, []uuid.UUID{group.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error string   `json:"error"`
		IDs   []string `json:"ids"`
	}
	decode(t, rec, &body)
	assert.Equal(t, []string{group.ID.String()}, body.IDs)
}

func TestDefaultGroupsAndEventIngress(t *testing.T) {
	s := newServer(t)
	admin := token(t, "", authz.RolePlatformAdmin)
	acme := token(t, "acme")
	globex := token(t, "globex")
	c := s.seed(admin, "rhel")

	rec := s.do(http.MethodPost, "/internal/endpoints", admin, map[string]interface{}{
		"name": "email", "type": "EMAIL_SUBSCRIPTION", "properties": map[string]interface{}{"only_admins": false},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var email models.Endpoint
	decode(t, rec, &email)
	assert.Nil(t, email.OrgID)

	rec = s.do(http.MethodPost, "/internal/endpoints", admin, map[string]interface{}{
		"name": "hook", "type": "WEBHOOK", "properties": map[string]interface{}{"url": "https://x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/internal/behaviorGroups/default", admin, map[string]interface{}{"display_name": "Global Alert", "bundle_id": c.bundle.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var global models.BehaviorGroup
	decode(t, rec, &global)
	assert.True(t, global.Default)

	path := "/internal/behaviorGroups/default/" + global.ID.String()
	require.Equal(t, http.StatusNoContent, s.do(http.MethodPut, path+"/actions", admin, []uuid.UUID{email.ID}).Code)
	rec = s.do(http.MethodPut, path+"/eventTypes/"+c.eventType.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true\n", rec.Body.String())
	rec = s.do(http.MethodPut, path+"/eventTypes/"+c.eventType.ID.String(), admin, nil)
	assert.Equal(t, "false\n", rec.Body.String())

	// Default groups are read-only for orgs.
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, "/behaviorGroups/"+global.ID.String(), acme, nil).Code)

	rec = s.do(http.MethodPut, "/subscriptions/"+c.eventType.ID.String()+"/instant", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/internal/events", admin, notification.InboundEvent{
		OrgID: "acme", Bundle: "rhel", Application: "policies", EventType: "policy-triggered",
		Payload: json.RawMessage(`{"severity":"high"}`),
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var result notification.Result
	decode(t, rec, &result)
	require.Len(t, result.History, 1)
	assert.Equal(t, models.HistoryStatusSuccess, result.History[0].Status)

	var history []models.NotificationHistory
	rec = s.do(http.MethodGet, "/events/"+result.Event.ID.String()+"/history", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &history)
	require.Len(t, history, 1)

	rec = s.do(http.MethodGet, "/events/"+result.Event.ID.String()+"/history", globex, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	var details map[string]interface{}
	rec = s.do(http.MethodGet, "/history/"+history[0].ID.String()+"/details", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &details)
	assert.Equal(t, []interface{}{"jdoe"}, details["recipients"])
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/history/"+history[0].ID.String()+"/details", globex, nil).Code)

	rec = s.do(http.MethodPost, "/internal/events", admin, notification.InboundEvent{
		OrgID: "acme", Bundle: "rhel", Application: "policies", EventType: "unknown",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, path+"/eventTypes/"+c.eventType.ID.String(), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true\n", rec.Body.String())
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, path, admin, nil).Code)
}

func TestSubscriptionRoutes(t *testing.T) {
	s := newServer(t)
	admin := token(t, "", authz.RolePlatformAdmin)
	acme := token(t, "acme")
	c := s.seed(admin, "rhel")
	base := "/subscriptions/" + c.eventType.ID.String()

	var applied map[string]bool
	rec := s.do(http.MethodDelete, base+"/daily", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &applied)
	assert.True(t, applied["applied"])

	rec = s.do(http.MethodPut, base+"/drawer", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &applied)
	assert.False(t, applied["applied"])

	var subscribed map[string]bool
	rec = s.do(http.MethodGet, base+"/instant", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &subscribed)
	assert.True(t, subscribed["subscribed"])

	var subs []models.EmailSubscription
	rec = s.do(http.MethodGet, "/subscriptions", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionDaily, subs[0].Type)
	assert.False(t, subs[0].Subscribed)

	rec = s.do(http.MethodGet, "/subscriptions/types", acme, nil)
	assert.JSONEq(t, `["INSTANT","DAILY"]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/subscriptions/"+uuid.NewString()+"/instant", acme, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/subscriptions/nope/instant", acme, nil).Code)
}

func TestEndpointRoutes(t *testing.T) {
	s := newServer(t)
	acme := token(t, "acme")
	globex := token(t, "globex")
	ep := s.webhook(acme)
	assert.Equal(t, models.EndpointStatusReady, ep.Status)
	assert.Equal(t, "POST", ep.Properties.(models.WebhookProperties).Method)

	var endpoints []models.Endpoint
	rec := s.do(http.MethodGet, "/endpoints?type=webhook", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &endpoints)
	assert.Len(t, endpoints, 1)

	rec = s.do(http.MethodGet, "/endpoints?type=camel", acme, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/endpoints?type=pigeon", acme, nil).Code)

	path := "/endpoints/" + ep.ID.String()
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, globex, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path+"/enable", globex, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path+"/enable", acme, nil).Code)

	var fetched models.Endpoint
	rec = s.do(http.MethodGet, path, acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &fetched)
	assert.False(t, fetched.Enabled)

	rec = s.do(http.MethodGet, path+"/history", acme, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, acme, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, acme, nil).Code)

	rec = s.do(http.MethodPost, "/endpoints", acme, map[string]interface{}{"name": "broken", "type": "camel", "properties": map[string]interface{}{"url": "https://x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
