package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/models"
)

type subscriptionKey struct {
	orgID       string
	userID      string
	eventTypeID uuid.UUID
	subType     models.SubscriptionType
}

// Subscriptions keeps user subscription preferences in memory.
type Subscriptions struct {
	mu   sync.RWMutex
	subs map[subscriptionKey]bool
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{subs: map[subscriptionKey]bool{}}
}

func (s *Subscriptions) Upsert(_ context.Context, sub models.EmailSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[subscriptionKey{
		orgID:       strings.TrimSpace(sub.OrgID),
		userID:      strings.TrimSpace(sub.UserID),
		eventTypeID: sub.EventTypeID,
		subType:     sub.Type,
	}] = sub.Subscribed
	return nil
}

func (s *Subscriptions) Get(_ context.Context, orgID, userID string, eventTypeID uuid.UUID, subType models.SubscriptionType) (*models.EmailSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := subscriptionKey{orgID: strings.TrimSpace(orgID), userID: strings.TrimSpace(userID), eventTypeID: eventTypeID, subType: subType}
	subscribed, ok := s.subs[key]
	if !ok {
		return nil, nil
	}
	sub := key.subscription(subscribed)
	return &sub, nil
}

func (s *Subscriptions) List(_ context.Context, orgID, userID string) ([]models.EmailSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, userID = strings.TrimSpace(orgID), strings.TrimSpace(userID)
	var subs []models.EmailSubscription
	for k, subscribed := range s.subs {
		if k.orgID == orgID && k.userID == userID {
			subs = append(subs, k.subscription(subscribed))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].EventTypeID != subs[j].EventTypeID {
			return subs[i].EventTypeID.String() < subs[j].EventTypeID.String()
		}
		return subs[i].Type < subs[j].Type
	})
	return subs, nil
}

func (s *Subscriptions) ListSubscribers(_ context.Context, orgID string, eventTypeID uuid.UUID, subType models.SubscriptionType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID = strings.TrimSpace(orgID)
	var users []string
	for k, subscribed := range s.subs {
		if subscribed && k.orgID == orgID && k.eventTypeID == eventTypeID && k.subType == subType {
			users = append(users, k.userID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (k subscriptionKey) subscription(subscribed bool) models.EmailSubscription {
	return models.EmailSubscription{
		OrgID:       k.orgID,
		UserID:      k.userID,
		EventTypeID: k.eventTypeID,
		Type:        k.subType,
		Subscribed:  subscribed,
	}
}
