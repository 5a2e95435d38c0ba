// Package subscription tracks which users receive which kind of notification
// for an event type.
package subscription

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

// Features gates subscription kinds that are not always available.
type Features struct {
	DrawerEnabled bool `mapstructure:"drawer_enabled"`
}

type EventTypeLookup interface {
	GetEventType(ctx context.Context, eventTypeID uuid.UUID) (*models.EventType, error)
}

type Service struct {
	repo     repository.SubscriptionRepository
	catalog  EventTypeLookup
	features Features
	logger   zerolog.Logger
}

func NewService(repo repository.SubscriptionRepository, catalog EventTypeLookup, features Features, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		features: features,
		logger:   logger.With().Str("component", "subscriptions").Logger(),
	}
}

// AvailableTypes lists the subscription kinds currently enabled.
func (s *Service) AvailableTypes() []models.SubscriptionType {
	types := []models.SubscriptionType{models.SubscriptionInstant, models.SubscriptionDaily}
	if s.features.DrawerEnabled {
		types = append(types, models.SubscriptionDrawer)
	}
	return types
}

func (s *Service) enabled(t models.SubscriptionType) bool {
	switch t {
	case models.SubscriptionInstant, models.SubscriptionDaily:
		return true
	case models.SubscriptionDrawer:
		return s.features.DrawerEnabled
	default:
		return false
	}
}

// Subscribe opts userID in. It reports false without error when the kind is
// disabled or unknown.
func (s *Service) Subscribe(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, t models.SubscriptionType) (bool, error) {
	return s.set(ctx, orgID, userID, eventTypeID, t, true)
}

// Unsubscribe opts userID out. Locked event types cannot be unsubscribed from.
func (s *Service) Unsubscribe(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, t models.SubscriptionType) (bool, error) {
	return s.set(ctx, orgID, userID, eventTypeID, t, false)
}

func (s *Service) set(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, t models.SubscriptionType, subscribed bool) (bool, error) {
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return false, apperror.Invalid("org id and user id are required")
	}
	if !s.enabled(t) {
		s.logger.Debug().Str("subscription_type", string(t)).Msg("ignoring disabled subscription type")
		return false, nil
	}

	eventType, err := s.catalog.GetEventType(ctx, eventTypeID)
	if err != nil {
		return false, err
	}
	if !subscribed && eventType.SubscriptionLocked {
		return false, apperror.Invalid("subscription to event type %s is locked", eventType.Name)
	}

	err = s.repo.Upsert(ctx, models.EmailSubscription{
		OrgID:       orgID,
		UserID:      userID,
		EventTypeID: eventTypeID,
		Type:        t,
		Subscribed:  subscribed,
	})
	if err != nil {
		return false, err
	}
	s.logger.Debug().
		Str("org_id", orgID).
		Str("user_id", userID).
		Str("event_type_id", eventTypeID.String()).
		Str("subscription_type", string(t)).
		Bool("subscribed", subscribed).
		Msg("subscription updated")
	return true, nil
}

// ListSubscriptions returns the stored preferences of a user, leaving out
// kinds that are disabled.
func (s *Service) ListSubscriptions(ctx context.Context, orgID, userID string) ([]models.EmailSubscription, error) {
	subs, err := s.repo.List(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	out := subs[:0]
	for _, sub := range subs {
		if s.enabled(sub.Type) {
			out = append(out, sub)
		}
	}
	return out, nil
}

// IsSubscribed falls back to the event type default when the user never
// expressed a preference.
func (s *Service) IsSubscribed(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, t models.SubscriptionType) (bool, error) {
	if !s.enabled(t) {
		return false, nil
	}
	eventType, err := s.catalog.GetEventType(ctx, eventTypeID)
	if err != nil {
		return false, err
	}
	if eventType.SubscriptionLocked {
		return eventType.SubscribedByDefault, nil
	}
	sub, err := s.repo.Get(ctx, orgID, userID, eventTypeID, t)
	if err != nil {
		return false, err
	}
	if sub != nil {
		return sub.Subscribed, nil
	}
	return eventType.SubscribedByDefault, nil
}

// ListSubscribers returns the users of orgID that opted in to eventTypeID.
func (s *Service) ListSubscribers(ctx context.Context, orgID string, eventTypeID uuid.UUID, t models.SubscriptionType) ([]string, error) {
	if !s.enabled(t) {
		return nil, nil
	}
	return s.repo.ListSubscribers(ctx, orgID, eventTypeID, t)
}
