package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
)

func seed(t *testing.T, s *Store) (models.EventType, models.BehaviorGroup, models.Endpoint) {
	t.Helper()
	ctx := context.Background()
	bundle := models.Bundle{Name: "rhel"}
	require.NoError(t, s.CreateBundle(ctx, &bundle))
	app := models.Application{BundleID: bundle.ID, Name: "policies"}
	require.NoError(t, s.CreateApplication(ctx, &app))
	et := models.EventType{ApplicationID: app.ID, Name: "policy-triggered"}
	require.NoError(t, s.CreateEventType(ctx, &et))

	org := "acme"
	group := models.BehaviorGroup{ID: uuid.New(), OrgID: &org, BundleID: bundle.ID, DisplayName: "A", Created: s.now()}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx behavior.Tx) error {
		return tx.InsertBehaviorGroup(ctx, &group)
	}))
	ep := models.Endpoint{
		OrgID:      &org,
		Name:       "hook",
		Type:       models.EndpointTypeWebhook,
		Enabled:    true,
		Properties: models.WebhookProperties{URL: "https://acme.example.com"},
	}
	require.NoError(t, s.Endpoints().Create(ctx, &ep))
	return et, group, ep
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	et, group, _ := seed(t, s)
	scope := models.OrgScope("acme")

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(ctx context.Context, tx behavior.Tx) error {
		ok, err := tx.UpsertEventTypeBehavior(ctx, scope, et.ID, group.ID)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.st.links)
}

func TestUpsertKeepsOriginalCreated(t *testing.T) {
	s := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
	et, group, ep := seed(t, s)
	scope := models.OrgScope("acme")
	ctx := context.Background()

	upsert := func() {
		require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx behavior.Tx) error {
			if _, err := tx.UpsertEventTypeBehavior(ctx, scope, et.ID, group.ID); err != nil {
				return err
			}
			_, err := tx.UpsertBehaviorGroupAction(ctx, scope, group.ID, ep.ID, 0)
			return err
		}))
	}

	upsert()
	link := s.st.links[linkKey{eventTypeID: et.ID, behaviorGroupID: group.ID}]
	action := s.st.actions[actionKey{behaviorGroupID: group.ID, endpointID: ep.ID}]

	upsert()
	assert.Equal(t, link.Created, s.st.links[linkKey{eventTypeID: et.ID, behaviorGroupID: group.ID}].Created)
	assert.Equal(t, action.Created, s.st.actions[actionKey{behaviorGroupID: group.ID, endpointID: ep.ID}].Created)
	assert.Len(t, s.st.links, 1)
	assert.Len(t, s.st.actions, 1)
}

func TestEndpointDeleteCascadesActions(t *testing.T) {
	s := New()
	_, group, ep := seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx behavior.Tx) error {
		_, err := tx.UpsertBehaviorGroupAction(ctx, models.OrgScope("acme"), group.ID, ep.ID, 0)
		return err
	}))
	require.Len(t, s.st.actions, 1)

	deleted, err := s.Endpoints().Delete(ctx, "other", ep.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.Endpoints().Delete(ctx, "acme", ep.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, s.st.actions)
}

func TestCatalogLookups(t *testing.T) {
	s := New()
	et, _, _ := seed(t, s)
	ctx := context.Background()

	found, err := s.FindEventTypeByNames(ctx, "rhel", "policies", "policy-triggered")
	require.NoError(t, err)
	assert.Equal(t, et.ID, found.ID)

	found, err = s.FindEventType(ctx, et.ApplicationID, "policy-triggered")
	require.NoError(t, err)
	assert.Equal(t, et.ID, found.ID)

	bundle, err := s.GetBundleOf(ctx, et.ID)
	require.NoError(t, err)
	assert.Equal(t, "rhel", bundle.Name)

	_, err = s.FindEventTypeByNames(ctx, "rhel", "policies", "missing")
	assert.Error(t, err)

	dup := models.EventType{ApplicationID: et.ApplicationID, Name: "policy-triggered"}
	assert.Error(t, s.CreateEventType(ctx, &dup))
}
