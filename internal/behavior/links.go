package behavior

import (
	"context"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// UpdateEventTypeBehaviors replaces the links between eventTypeID and the
// behavior groups owned by orgID with behaviorGroupIDs. Links to default groups
// are never touched. Ids of groups orgID does not own are skipped. If any
// visible group belongs to another bundle than the event type, nothing changes.
func (s *Service) UpdateEventTypeBehaviors(ctx context.Context, orgID string, eventTypeID uuid.UUID, behaviorGroupIDs []uuid.UUID) error {
	scope, err := orgScope(orgID)
	if err != nil {
		return err
	}
	ids := uniqueIDs(behaviorGroupIDs)

	var removed int64
	var added int
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockEventType(ctx, eventTypeID); err != nil {
			return err
		}
		eventType, err := tx.GetEventType(ctx, eventTypeID)
		if err != nil {
			return err
		}
		if eventType == nil {
			return apperror.NotFound("event type %s not found", eventTypeID)
		}
		if err := checkBundles(ctx, tx, scope, eventType, ids); err != nil {
			return err
		}

		removed, err = tx.DeleteEventTypeBehaviorsExcept(ctx, scope, eventTypeID, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			inserted, err := tx.UpsertEventTypeBehavior(ctx, scope, eventTypeID, id)
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("org_id", orgID).
		Str("event_type_id", eventTypeID.String()).
		Int64("removed", removed).
		Int("added", added).
		Msg("event type behaviors updated")
	return nil
}

// checkBundles rejects the whole request when a group visible from scope does
// not share the event type's bundle. Groups the caller cannot see are ignored
// so their existence does not leak.
func checkBundles(ctx context.Context, tx Tx, scope models.Scope, eventType *models.EventType, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	bundles, err := tx.BehaviorGroupBundles(ctx, scope, ids)
	if err != nil {
		return err
	}
	var offenders []string
	for _, id := range ids {
		bundleID, ok := bundles[id]
		if ok && bundleID != eventType.BundleID {
			offenders = append(offenders, id.String())
		}
	}
	if len(offenders) > 0 {
		return apperror.InvalidIDs("behavior groups must belong to the same bundle as the event type", offenders)
	}
	return nil
}

// LinkEventTypeDefaultBehavior links a default behavior group to an event type.
// It reports false when the link already existed.
func (s *Service) LinkEventTypeDefaultBehavior(ctx context.Context, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	var linked bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := checkDefaultPair(ctx, tx, eventTypeID, behaviorGroupID); err != nil {
			return err
		}
		var err error
		linked, err = tx.UpsertEventTypeBehavior(ctx, models.DefaultScope(), eventTypeID, behaviorGroupID)
		return err
	})
	return linked, err
}

// UnlinkEventTypeDefaultBehavior removes the link between a default behavior
// group and an event type. It reports false when there was no such link.
func (s *Service) UnlinkEventTypeDefaultBehavior(ctx context.Context, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	var unlinked bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := checkDefaultPair(ctx, tx, eventTypeID, behaviorGroupID); err != nil {
			return err
		}
		var err error
		unlinked, err = tx.DeleteEventTypeBehavior(ctx, models.DefaultScope(), eventTypeID, behaviorGroupID)
		return err
	})
	return unlinked, err
}

func checkDefaultPair(ctx context.Context, tx Tx, eventTypeID, behaviorGroupID uuid.UUID) error {
	eventType, err := tx.GetEventType(ctx, eventTypeID)
	if err != nil {
		return err
	}
	if eventType == nil {
		return apperror.NotFound("event type %s not found", eventTypeID)
	}
	group, err := tx.GetBehaviorGroup(ctx, behaviorGroupID)
	if err != nil {
		return err
	}
	if group == nil || !group.IsDefault() {
		return apperror.NotFound("default behavior group %s not found", behaviorGroupID)
	}
	if group.BundleID != eventType.BundleID {
		return apperror.InvalidIDs("behavior groups must belong to the same bundle as the event type", []string{behaviorGroupID.String()})
	}
	return nil
}

// FindEventTypesByBehaviorGroupID lists the event types linked to a group owned
// by orgID or to a default group.
func (s *Service) FindEventTypesByBehaviorGroupID(ctx context.Context, orgID string, behaviorGroupID uuid.UUID) ([]models.EventType, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return nil, err
	}
	var eventTypes []models.EventType
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		group, err := tx.GetBehaviorGroup(ctx, behaviorGroupID)
		if err != nil {
			return err
		}
		if group == nil || !scope.Visible(group.OrgID) {
			return apperror.NotFound("behavior group %s not found", behaviorGroupID)
		}
		eventTypes, err = tx.ListEventTypesByBehaviorGroup(ctx, behaviorGroupID)
		return err
	})
	return eventTypes, err
}

// FindBehaviorGroupsByEventTypeID lists the groups linked to an event type that
// apply to orgID: its own groups and the default groups.
func (s *Service) FindBehaviorGroupsByEventTypeID(ctx context.Context, orgID string, eventTypeID uuid.UUID, page models.Page) ([]models.BehaviorGroup, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return nil, err
	}
	page = page.Clamp(s.defaultLimit, s.maxLimit)

	var groups []models.BehaviorGroup
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		eventType, err := tx.GetEventType(ctx, eventTypeID)
		if err != nil {
			return err
		}
		if eventType == nil {
			return apperror.NotFound("event type %s not found", eventTypeID)
		}
		found, err := tx.ListBehaviorGroupsByEventType(ctx, scope, eventTypeID, page)
		if err != nil {
			return err
		}
		for i := range found {
			found[i].Default = found[i].IsDefault()
		}
		groups = found
		return nil
	})
	return groups, err
}

// uniqueIDs drops duplicates and the nil id, keeping first occurrences in order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
