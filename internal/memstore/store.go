// Package memstore is an embedded, process-local implementation of the
// behavior group storage. Each transaction works on a private copy of the data
// that replaces the shared state only when the transaction succeeds.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

type linkKey struct {
	eventTypeID     uuid.UUID
	behaviorGroupID uuid.UUID
}

type actionKey struct {
	behaviorGroupID uuid.UUID
	endpointID      uuid.UUID
}

type state struct {
	bundles      map[uuid.UUID]models.Bundle
	applications map[uuid.UUID]models.Application
	eventTypes   map[uuid.UUID]models.EventType
	endpoints    map[uuid.UUID]models.Endpoint
	groups       map[uuid.UUID]models.BehaviorGroup
	links        map[linkKey]models.EventTypeBehavior
	actions      map[actionKey]models.BehaviorGroupAction
}

func newState() *state {
	return &state{
		bundles:      map[uuid.UUID]models.Bundle{},
		applications: map[uuid.UUID]models.Application{},
		eventTypes:   map[uuid.UUID]models.EventType{},
		endpoints:    map[uuid.UUID]models.Endpoint{},
		groups:       map[uuid.UUID]models.BehaviorGroup{},
		links:        map[linkKey]models.EventTypeBehavior{},
		actions:      map[actionKey]models.BehaviorGroupAction{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.bundles {
		c.bundles[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.eventTypes {
		c.eventTypes[k] = v
	}
	for k, v := range s.endpoints {
		c.endpoints[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.actions {
		c.actions[k] = v
	}
	return c
}

// Store serializes transactions with a single mutex.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var (
	_ behavior.Store                           = (*Store)(nil)
	_ repository.CatalogRepository             = (*Store)(nil)
	_ repository.EndpointRepository            = (*Endpoints)(nil)
	_ repository.SubscriptionRepository        = (*Subscriptions)(nil)
	_ repository.NotificationHistoryRepository = (*History)(nil)
)

func New() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock used for link and action timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx behavior.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	// A cancelled request must not commit.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	fn(work)
	s.st = work
}
