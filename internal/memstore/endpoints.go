package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// Endpoints is the endpoint store view over the same data as the engine.
type Endpoints struct {
	s *Store
}

func (s *Store) Endpoints() *Endpoints {
	return &Endpoints{s: s}
}

func (e *Endpoints) Create(_ context.Context, endpoint *models.Endpoint) error {
	if err := endpoint.Validate(); err != nil {
		return apperror.Invalid("%s", err.Error())
	}
	endpoint.Normalize()
	e.s.write(func(st *state) {
		stamp(&endpoint.ID, &endpoint.Created, e.s.now)
		st.endpoints[endpoint.ID] = *endpoint
	})
	return nil
}

func (e *Endpoints) Get(_ context.Context, scope models.Scope, endpointID uuid.UUID) (*models.Endpoint, error) {
	var found *models.Endpoint
	e.s.read(func(st *state) {
		if ep, ok := st.endpoints[endpointID]; ok && scope.Matches(ep.OrgID) {
			found = &ep
		}
	})
	if found == nil {
		return nil, apperror.NotFound("endpoint %s not found", endpointID)
	}
	return found, nil
}

func (e *Endpoints) List(_ context.Context, orgID string, types []models.EndpointType, page models.Page) ([]models.Endpoint, error) {
	scope := models.OrgScope(orgID)
	wanted := make(map[models.EndpointType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	var endpoints []models.Endpoint
	e.s.read(func(st *state) {
		for _, ep := range st.endpoints {
			if !scope.Matches(ep.OrgID) {
				continue
			}
			if _, ok := wanted[ep.Type]; len(wanted) > 0 && !ok {
				continue
			}
			endpoints = append(endpoints, ep)
		}
	})
	sort.Slice(endpoints, func(i, j int) bool {
		if !endpoints[i].Created.Equal(endpoints[j].Created) {
			return endpoints[i].Created.Before(endpoints[j].Created)
		}
		return endpoints[i].ID.String() < endpoints[j].ID.String()
	})
	if page.Offset >= len(endpoints) {
		return nil, nil
	}
	endpoints = endpoints[page.Offset:]
	if page.Limit > 0 && page.Limit < len(endpoints) {
		endpoints = endpoints[:page.Limit]
	}
	return endpoints, nil
}

func (e *Endpoints) SetEnabled(_ context.Context, orgID string, endpointID uuid.UUID, enabled bool) (bool, error) {
	scope := models.OrgScope(orgID)
	var changed bool
	e.s.write(func(st *state) {
		ep, ok := st.endpoints[endpointID]
		if !ok || !scope.Matches(ep.OrgID) {
			return
		}
		now := e.s.now()
		ep.Enabled = enabled
		ep.Updated = &now
		st.endpoints[endpointID] = ep
		changed = true
	})
	return changed, nil
}

// Delete removes an endpoint together with every action pointing at it.
func (e *Endpoints) Delete(_ context.Context, orgID string, endpointID uuid.UUID) (bool, error) {
	scope := models.OrgScope(orgID)
	var deleted bool
	e.s.write(func(st *state) {
		ep, ok := st.endpoints[endpointID]
		if !ok || !scope.Matches(ep.OrgID) {
			return
		}
		delete(st.endpoints, endpointID)
		for k := range st.actions {
			if k.endpointID == endpointID {
				delete(st.actions, k)
			}
		}
		deleted = true
	})
	return deleted, nil
}
