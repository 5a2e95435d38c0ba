package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/memstore"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/subscription"
)

type catalog struct {
	store    *memstore.Store
	open     models.EventType
	locked   models.EventType
	optedOut models.EventType
}

func newCatalog(t *testing.T) catalog {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	bundle := models.Bundle{Name: "rhel"}
	require.NoError(t, store.CreateBundle(ctx, &bundle))
	app := models.Application{BundleID: bundle.ID, Name: "policies"}
	require.NoError(t, store.CreateApplication(ctx, &app))

	c := catalog{store: store}
	c.open = models.EventType{ApplicationID: app.ID, Name: "policy-triggered", SubscribedByDefault: true}
	c.locked = models.EventType{ApplicationID: app.ID, Name: "policy-locked", SubscribedByDefault: true, SubscriptionLocked: true}
	c.optedOut = models.EventType{ApplicationID: app.ID, Name: "policy-quiet"}
	for _, et := range []*models.EventType{&c.open, &c.locked, &c.optedOut} {
		require.NoError(t, store.CreateEventType(ctx, et))
	}
	return c
}

func newService(t *testing.T, features subscription.Features) (*subscription.Service, catalog) {
	t.Helper()
	c := newCatalog(t)
	return subscription.NewService(memstore.NewSubscriptions(), c.store, features, zerolog.Nop()), c
}

func TestSubscribeIsIdempotent(t *testing.T) {
	svc, c := newService(t, subscription.Features{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		applied, err := svc.Subscribe(ctx, "acme", "jdoe", c.optedOut.ID, models.SubscriptionInstant)
		require.NoError(t, err)
		assert.True(t, applied)
	}

	subs, err := svc.ListSubscriptions(ctx, "acme", "jdoe")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Subscribed)

	users, err := svc.ListSubscribers(ctx, "acme", c.optedOut.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.Equal(t, []string{"jdoe"}, users)

	applied, err := svc.Unsubscribe(ctx, "acme", "jdoe", c.optedOut.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.True(t, applied)

	users, err = svc.ListSubscribers(ctx, "acme", c.optedOut.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDrawerIsGatedByFeatureFlag(t *testing.T) {
	ctx := context.Background()

	disabled, c := newService(t, subscription.Features{})
	applied, err := disabled.Subscribe(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionDrawer)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NotContains(t, disabled.AvailableTypes(), models.SubscriptionDrawer)

	subscribed, err := disabled.IsSubscribed(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionDrawer)
	require.NoError(t, err)
	assert.False(t, subscribed)

	enabled, c := newService(t, subscription.Features{DrawerEnabled: true})
	applied, err = enabled.Subscribe(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionDrawer)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Contains(t, enabled.AvailableTypes(), models.SubscriptionDrawer)

	subs, err := enabled.ListSubscriptions(ctx, "acme", "jdoe")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionDrawer, subs[0].Type)
}

func TestDisabledKindsAreHiddenFromReads(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	repo := memstore.NewSubscriptions()

	on := subscription.NewService(repo, c.store, subscription.Features{DrawerEnabled: true}, zerolog.Nop())
	_, err := on.Subscribe(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionDrawer)
	require.NoError(t, err)
	_, err = on.Subscribe(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionDaily)
	require.NoError(t, err)

	off := subscription.NewService(repo, c.store, subscription.Features{}, zerolog.Nop())
	subs, err := off.ListSubscriptions(ctx, "acme", "jdoe")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionDaily, subs[0].Type)
}

func TestUnknownKindIsIgnored(t *testing.T) {
	svc, c := newService(t, subscription.Features{DrawerEnabled: true})
	applied, err := svc.Subscribe(context.Background(), "acme", "jdoe", c.open.ID, models.SubscriptionType("PIGEON"))
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestLockedEventTypeCannotBeUnsubscribed(t *testing.T) {
	svc, c := newService(t, subscription.Features{})
	ctx := context.Background()

	_, err := svc.Unsubscribe(ctx, "acme", "jdoe", c.locked.ID, models.SubscriptionInstant)
	assert.True(t, apperror.IsInvalid(err))

	subscribed, err := svc.IsSubscribed(ctx, "acme", "jdoe", c.locked.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.True(t, subscribed)
}

func TestIsSubscribedFallsBackToDefault(t *testing.T) {
	svc, c := newService(t, subscription.Features{})
	ctx := context.Background()

	subscribed, err := svc.IsSubscribed(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.True(t, subscribed)

	subscribed, err = svc.IsSubscribed(ctx, "acme", "jdoe", c.optedOut.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.False(t, subscribed)

	_, err = svc.Unsubscribe(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	subscribed, err = svc.IsSubscribed(ctx, "acme", "jdoe", c.open.ID, models.SubscriptionInstant)
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestSubscribeValidation(t *testing.T) {
	svc, c := newService(t, subscription.Features{})
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "", "jdoe", c.open.ID, models.SubscriptionInstant)
	assert.True(t, apperror.IsInvalid(err))

	_, err = svc.Subscribe(ctx, "acme", "jdoe", uuid.New(), models.SubscriptionInstant)
	assert.True(t, apperror.IsNotFound(err))
}
