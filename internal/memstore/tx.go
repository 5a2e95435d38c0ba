package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/models"
)

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) BundleExists(_ context.Context, bundleID uuid.UUID) (bool, error) {
	_, ok := t.st.bundles[bundleID]
	return ok, nil
}

func (t *tx) GetEventType(_ context.Context, eventTypeID uuid.UUID) (*models.EventType, error) {
	return t.st.eventType(eventTypeID), nil
}

func (st *state) eventType(eventTypeID uuid.UUID) *models.EventType {
	et, ok := st.eventTypes[eventTypeID]
	if !ok {
		return nil
	}
	if app, ok := st.applications[et.ApplicationID]; ok {
		et.BundleID = app.BundleID
	}
	return &et
}

// Store.InTx already runs one unit of work at a time.
func (t *tx) LockEventType(context.Context, uuid.UUID) error { return nil }

func (t *tx) LockBehaviorGroup(context.Context, uuid.UUID) error { return nil }

func (t *tx) GetBehaviorGroup(_ context.Context, behaviorGroupID uuid.UUID) (*models.BehaviorGroup, error) {
	g, ok := t.st.groups[behaviorGroupID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (t *tx) BehaviorGroupNameExists(_ context.Context, scope models.Scope, bundleID uuid.UUID, displayName string, excludeID uuid.UUID) (bool, error) {
	for id, g := range t.st.groups {
		if id == excludeID {
			continue
		}
		if g.BundleID == bundleID && g.DisplayName == displayName && scope.Matches(g.OrgID) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertBehaviorGroup(_ context.Context, group *models.BehaviorGroup) error {
	stored := *group
	stored.Actions = nil
	stored.Bundle = nil
	t.st.groups[group.ID] = stored
	return nil
}

func (t *tx) UpdateBehaviorGroupName(_ context.Context, scope models.Scope, behaviorGroupID uuid.UUID, displayName string) (bool, error) {
	g, ok := t.st.groups[behaviorGroupID]
	if !ok || !scope.Matches(g.OrgID) {
		return false, nil
	}
	now := t.now()
	g.DisplayName = displayName
	g.Updated = &now
	t.st.groups[behaviorGroupID] = g
	return true, nil
}

func (t *tx) DeleteBehaviorGroup(_ context.Context, scope models.Scope, behaviorGroupID uuid.UUID) (bool, error) {
	g, ok := t.st.groups[behaviorGroupID]
	if !ok || !scope.Matches(g.OrgID) {
		return false, nil
	}
	delete(t.st.groups, behaviorGroupID)
	for k := range t.st.links {
		if k.behaviorGroupID == behaviorGroupID {
			delete(t.st.links, k)
		}
	}
	for k := range t.st.actions {
		if k.behaviorGroupID == behaviorGroupID {
			delete(t.st.actions, k)
		}
	}
	return true, nil
}

func (t *tx) ListBehaviorGroupsByBundle(_ context.Context, scope models.Scope, bundleID uuid.UUID) ([]models.BehaviorGroup, error) {
	var groups []models.BehaviorGroup
	for _, g := range t.st.groups {
		if g.BundleID == bundleID && scope.Visible(g.OrgID) {
			groups = append(groups, g)
		}
	}
	sortGroups(groups)
	return groups, nil
}

func (t *tx) BehaviorGroupBundles(_ context.Context, scope models.Scope, behaviorGroupIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(behaviorGroupIDs))
	for _, id := range behaviorGroupIDs {
		if g, ok := t.st.groups[id]; ok && scope.Visible(g.OrgID) {
			out[id] = g.BundleID
		}
	}
	return out, nil
}

func (t *tx) ListEventTypesByBehaviorGroup(_ context.Context, behaviorGroupID uuid.UUID) ([]models.EventType, error) {
	var eventTypes []models.EventType
	for k := range t.st.links {
		if k.behaviorGroupID != behaviorGroupID {
			continue
		}
		if et := t.st.eventType(k.eventTypeID); et != nil {
			eventTypes = append(eventTypes, *et)
		}
	}
	sort.Slice(eventTypes, func(i, j int) bool {
		if eventTypes[i].Name != eventTypes[j].Name {
			return eventTypes[i].Name < eventTypes[j].Name
		}
		return eventTypes[i].ID.String() < eventTypes[j].ID.String()
	})
	return eventTypes, nil
}

func (t *tx) ListBehaviorGroupsByEventType(_ context.Context, scope models.Scope, eventTypeID uuid.UUID, page models.Page) ([]models.BehaviorGroup, error) {
	var groups []models.BehaviorGroup
	for k := range t.st.links {
		if k.eventTypeID != eventTypeID {
			continue
		}
		if g, ok := t.st.groups[k.behaviorGroupID]; ok && scope.Visible(g.OrgID) {
			groups = append(groups, g)
		}
	}
	sortGroups(groups)
	if page.Offset >= len(groups) {
		return nil, nil
	}
	groups = groups[page.Offset:]
	if page.Limit > 0 && page.Limit < len(groups) {
		groups = groups[:page.Limit]
	}
	return groups, nil
}

func (t *tx) DeleteEventTypeBehaviorsExcept(_ context.Context, scope models.Scope, eventTypeID uuid.UUID, keep []uuid.UUID) (int64, error) {
	kept := idSet(keep)
	var removed int64
	for k := range t.st.links {
		if k.eventTypeID != eventTypeID {
			continue
		}
		g, ok := t.st.groups[k.behaviorGroupID]
		if !ok || !scope.Matches(g.OrgID) {
			continue
		}
		if _, ok := kept[k.behaviorGroupID]; ok {
			continue
		}
		delete(t.st.links, k)
		removed++
	}
	return removed, nil
}

func (t *tx) UpsertEventTypeBehavior(_ context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	if _, ok := t.st.eventTypes[eventTypeID]; !ok {
		return false, nil
	}
	g, ok := t.st.groups[behaviorGroupID]
	if !ok || !scope.Matches(g.OrgID) {
		return false, nil
	}
	key := linkKey{eventTypeID: eventTypeID, behaviorGroupID: behaviorGroupID}
	if _, exists := t.st.links[key]; exists {
		return false, nil
	}
	t.st.links[key] = models.EventTypeBehavior{
		EventTypeID:     eventTypeID,
		BehaviorGroupID: behaviorGroupID,
		Created:         t.now(),
	}
	return true, nil
}

func (t *tx) DeleteEventTypeBehavior(_ context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	g, ok := t.st.groups[behaviorGroupID]
	if !ok || !scope.Matches(g.OrgID) {
		return false, nil
	}
	key := linkKey{eventTypeID: eventTypeID, behaviorGroupID: behaviorGroupID}
	if _, exists := t.st.links[key]; !exists {
		return false, nil
	}
	delete(t.st.links, key)
	return true, nil
}

func (t *tx) ListActions(_ context.Context, behaviorGroupIDs []uuid.UUID) ([]models.BehaviorGroupAction, error) {
	wanted := idSet(behaviorGroupIDs)
	var actions []models.BehaviorGroupAction
	for k, a := range t.st.actions {
		if _, ok := wanted[k.behaviorGroupID]; !ok {
			continue
		}
		if ep, ok := t.st.endpoints[k.endpointID]; ok {
			endpoint := ep
			a.Endpoint = &endpoint
		}
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].BehaviorGroupID != actions[j].BehaviorGroupID {
			return actions[i].BehaviorGroupID.String() < actions[j].BehaviorGroupID.String()
		}
		return actions[i].Position < actions[j].Position
	})
	return actions, nil
}

func (t *tx) DeleteBehaviorGroupActionsExcept(_ context.Context, behaviorGroupID uuid.UUID, keep []uuid.UUID) (int64, error) {
	kept := idSet(keep)
	var removed int64
	for k := range t.st.actions {
		if k.behaviorGroupID != behaviorGroupID {
			continue
		}
		if _, ok := kept[k.endpointID]; ok {
			continue
		}
		delete(t.st.actions, k)
		removed++
	}
	return removed, nil
}

func (t *tx) UpsertBehaviorGroupAction(_ context.Context, scope models.Scope, behaviorGroupID, endpointID uuid.UUID, position int) (bool, error) {
	if _, ok := t.st.groups[behaviorGroupID]; !ok {
		return false, nil
	}
	ep, ok := t.st.endpoints[endpointID]
	if !ok || !scope.Matches(ep.OrgID) {
		return false, nil
	}
	key := actionKey{behaviorGroupID: behaviorGroupID, endpointID: endpointID}
	action, exists := t.st.actions[key]
	if !exists {
		action = models.BehaviorGroupAction{
			BehaviorGroupID: behaviorGroupID,
			EndpointID:      endpointID,
			Created:         t.now(),
		}
	}
	action.Position = position
	t.st.actions[key] = action
	return true, nil
}

func (t *tx) ListLinkedEndpoints(_ context.Context, scope models.Scope, eventTypeID uuid.UUID) ([]models.LinkedEndpoint, error) {
	var linked []models.LinkedEndpoint
	for k := range t.st.links {
		if k.eventTypeID != eventTypeID {
			continue
		}
		g, ok := t.st.groups[k.behaviorGroupID]
		if !ok || !scope.Visible(g.OrgID) {
			continue
		}
		for ak, a := range t.st.actions {
			if ak.behaviorGroupID != g.ID {
				continue
			}
			ep, ok := t.st.endpoints[ak.endpointID]
			if !ok {
				continue
			}
			linked = append(linked, models.LinkedEndpoint{
				BehaviorGroupID:      g.ID,
				BehaviorGroupCreated: g.Created,
				Position:             a.Position,
				Endpoint:             ep,
			})
		}
	}
	sort.Slice(linked, func(i, j int) bool {
		a, b := linked[i], linked[j]
		if !a.BehaviorGroupCreated.Equal(b.BehaviorGroupCreated) {
			return a.BehaviorGroupCreated.Before(b.BehaviorGroupCreated)
		}
		if a.BehaviorGroupID != b.BehaviorGroupID {
			return a.BehaviorGroupID.String() < b.BehaviorGroupID.String()
		}
		return a.Position < b.Position
	})
	return linked, nil
}

func sortGroups(groups []models.BehaviorGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].Created.Equal(groups[j].Created) {
			return groups[i].Created.Before(groups[j].Created)
		}
		return groups[i].ID.String() < groups[j].ID.String()
	})
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
