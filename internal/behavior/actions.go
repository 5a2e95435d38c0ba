package behavior

import (
	"context"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// UpdateBehaviorGroupActions makes endpointIDs the ordered action list of a
// group owned by orgID. Each action's position is the index of its endpoint in
// endpointIDs. Endpoints outside the org are skipped.
func (s *Service) UpdateBehaviorGroupActions(ctx context.Context, orgID string, behaviorGroupID uuid.UUID, endpointIDs []uuid.UUID) error {
	scope, err := orgScope(orgID)
	if err != nil {
		return err
	}
	return s.updateActions(ctx, scope, behaviorGroupID, endpointIDs)
}

// UpdateDefaultBehaviorGroupActions is UpdateBehaviorGroupActions for a default
// group, whose actions may only point at org-less endpoints.
func (s *Service) UpdateDefaultBehaviorGroupActions(ctx context.Context, behaviorGroupID uuid.UUID, endpointIDs []uuid.UUID) error {
	return s.updateActions(ctx, models.DefaultScope(), behaviorGroupID, endpointIDs)
}

func (s *Service) updateActions(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID, endpointIDs []uuid.UUID) error {
	if dups := duplicateIDs(endpointIDs); len(dups) > 0 {
		return apperror.InvalidIDs("endpoint ids must not be repeated", dups)
	}
	for _, id := range endpointIDs {
		if id == uuid.Nil {
			return apperror.Invalid("endpoint ids must not be empty")
		}
	}

	var upserted int
	var removed int64
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockBehaviorGroup(ctx, behaviorGroupID); err != nil {
			return err
		}
		group, err := tx.GetBehaviorGroup(ctx, behaviorGroupID)
		if err != nil {
			return err
		}
		if group == nil || !scope.Matches(group.OrgID) {
			return apperror.NotFound("behavior group %s not found", behaviorGroupID)
		}

		removed, err = tx.DeleteBehaviorGroupActionsExcept(ctx, behaviorGroupID, endpointIDs)
		if err != nil {
			return err
		}
		for position, endpointID := range endpointIDs {
			ok, err := tx.UpsertBehaviorGroupAction(ctx, scope, behaviorGroupID, endpointID, position)
			if err != nil {
				return err
			}
			if ok {
				upserted++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("behavior_group_id", behaviorGroupID.String()).
		Str("scope", scope.String()).
		Int64("removed", removed).
		Int("upserted", upserted).
		Int("requested", len(endpointIDs)).
		Msg("behavior group actions updated")
	return nil
}

func duplicateIDs(ids []uuid.UUID) []string {
	seen := make(map[uuid.UUID]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id.String())
		}
	}
	return dups
}

// ResolveEndpoints returns the endpoints to notify when orgID emits an event of
// eventTypeID, in firing order. Groups fire in creation order and actions by
// position inside a group. An endpoint reached twice fires once, at its first
// position. Disabled endpoints are dropped.
func (s *Service) ResolveEndpoints(ctx context.Context, orgID string, eventTypeID uuid.UUID) ([]models.Endpoint, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return nil, err
	}
	var linked []models.LinkedEndpoint
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		eventType, err := tx.GetEventType(ctx, eventTypeID)
		if err != nil {
			return err
		}
		if eventType == nil {
			return apperror.NotFound("event type %s not found", eventTypeID)
		}
		linked, err = tx.ListLinkedEndpoints(ctx, scope, eventTypeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(linked))
	endpoints := make([]models.Endpoint, 0, len(linked))
	for _, l := range linked {
		if _, ok := seen[l.Endpoint.ID]; ok {
			continue
		}
		seen[l.Endpoint.ID] = struct{}{}
		if !l.Endpoint.Enabled {
			continue
		}
		endpoints = append(endpoints, l.Endpoint)
	}
	return endpoints, nil
}
