package behavior

import (
	"context"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/models"
)

// Store runs units of work against the backing storage. Every call to InTx is
// atomic: either all writes made through tx are committed or none are.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the storage surface the engine needs. Lookups return (nil, nil) when the
// row does not exist. Upserts are keyed on the link tables' unique pairs and
// report whether a row was written.
type Tx interface {
	BundleExists(ctx context.Context, bundleID uuid.UUID) (bool, error)
	GetEventType(ctx context.Context, eventTypeID uuid.UUID) (*models.EventType, error)
	// LockEventType and LockBehaviorGroup hold the row until the unit of work ends,
	// so replacements of the same link or action set run one after the other.
	// A missing row is not an error.
	LockEventType(ctx context.Context, eventTypeID uuid.UUID) error
	LockBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) error

	GetBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) (*models.BehaviorGroup, error)
	BehaviorGroupNameExists(ctx context.Context, scope models.Scope, bundleID uuid.UUID, displayName string, excludeID uuid.UUID) (bool, error)
	InsertBehaviorGroup(ctx context.Context, group *models.BehaviorGroup) error
	UpdateBehaviorGroupName(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID, displayName string) (bool, error)
	// DeleteBehaviorGroup removes the group together with its event type links and actions.
	DeleteBehaviorGroup(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID) (bool, error)
	// ListBehaviorGroupsByBundle returns the groups of bundleID visible from scope, oldest first.
	ListBehaviorGroupsByBundle(ctx context.Context, scope models.Scope, bundleID uuid.UUID) ([]models.BehaviorGroup, error)
	// BehaviorGroupBundles maps each id visible from scope to its bundle. Unknown or
	// foreign ids are absent from the result.
	BehaviorGroupBundles(ctx context.Context, scope models.Scope, behaviorGroupIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

	ListEventTypesByBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) ([]models.EventType, error)
	ListBehaviorGroupsByEventType(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID, page models.Page) ([]models.BehaviorGroup, error)
	// DeleteEventTypeBehaviorsExcept drops the links of eventTypeID to groups owned by
	// scope whose id is not in keep. Links to groups of other scopes are untouched.
	DeleteEventTypeBehaviorsExcept(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID, keep []uuid.UUID) (int64, error)
	// UpsertEventTypeBehavior links the pair only when the group is owned by scope.
	// An existing link is left as is.
	UpsertEventTypeBehavior(ctx context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error)
	DeleteEventTypeBehavior(ctx context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error)

	// ListActions returns the actions of the given groups with their endpoints,
	// ordered by group then position.
	ListActions(ctx context.Context, behaviorGroupIDs []uuid.UUID) ([]models.BehaviorGroupAction, error)
	DeleteBehaviorGroupActionsExcept(ctx context.Context, behaviorGroupID uuid.UUID, keep []uuid.UUID) (int64, error)
	// UpsertBehaviorGroupAction writes the action only when the endpoint is owned by
	// scope. An existing action gets its position updated.
	UpsertBehaviorGroupAction(ctx context.Context, scope models.Scope, behaviorGroupID, endpointID uuid.UUID, position int) (bool, error)

	// ListLinkedEndpoints returns every endpoint reachable from eventTypeID through
	// groups visible from scope, ordered by group creation then action position.
	ListLinkedEndpoints(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID) ([]models.LinkedEndpoint, error)
}
