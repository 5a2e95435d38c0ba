package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
)

type behaviorGroupStore struct {
	db *sql.DB
}

// NewBehaviorGroupStore returns the PostgreSQL storage of the behavior group
// engine. Each InTx call maps onto one database transaction.
func NewBehaviorGroupStore(db *sql.DB) behavior.Store {
	return &behaviorGroupStore{db: db}
}

func (s *behaviorGroupStore) InTx(ctx context.Context, fn func(ctx context.Context, tx behavior.Tx) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &behaviorTx{tx: tx})
	})
}

type behaviorTx struct {
	tx *sql.Tx
}

const behaviorGroupColumns = `bg.id, bg.account_id, bg.org_id, bg.bundle_id, bg.display_name, bg.created, bg.updated`

func (t *behaviorTx) BundleExists(ctx context.Context, bundleID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM notifications.bundles WHERE id = $1)`
	var exists bool
	if err := t.tx.QueryRowContext(ctx, query, bundleID).Scan(&exists); err != nil {
		return false, classify(err, "check bundle")
	}
	return exists, nil
}

func (t *behaviorTx) GetEventType(ctx context.Context, eventTypeID uuid.UUID) (*models.EventType, error) {
	return getEventType(ctx, t.tx, eventTypeID)
}

func (t *behaviorTx) LockEventType(ctx context.Context, eventTypeID uuid.UUID) error {
	const query = `SELECT id FROM notifications.event_type WHERE id = $1 FOR UPDATE`
	return t.lock(ctx, query, eventTypeID, "lock event type")
}

func (t *behaviorTx) LockBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) error {
	const query = `SELECT id FROM notifications.behavior_group WHERE id = $1 FOR UPDATE`
	return t.lock(ctx, query, behaviorGroupID, "lock behavior group")
}

func (t *behaviorTx) lock(ctx context.Context, query string, id uuid.UUID, op string) error {
	var locked uuid.UUID
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&locked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return classify(err, op)
	}
	return nil
}

func (t *behaviorTx) GetBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) (*models.BehaviorGroup, error) {
	const query = `SELECT ` + behaviorGroupColumns + ` FROM notifications.behavior_group bg WHERE bg.id = $1`
	g, err := scanBehaviorGroup(t.tx.QueryRowContext(ctx, query, behaviorGroupID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "get behavior group")
	}
	return &g, nil
}

func (t *behaviorTx) BehaviorGroupNameExists(ctx context.Context, scope models.Scope, bundleID uuid.UUID, displayName string, excludeID uuid.UUID) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM notifications.behavior_group
			WHERE bundle_id = $1 AND display_name = $2 AND org_id IS NOT DISTINCT FROM $3 AND id <> $4
		)
	`
	var exists bool
	if err := t.tx.QueryRowContext(ctx, query, bundleID, displayName, orgArg(scope), excludeID).Scan(&exists); err != nil {
		return false, classify(err, "check behavior group name")
	}
	return exists, nil
}

func (t *behaviorTx) InsertBehaviorGroup(ctx context.Context, group *models.BehaviorGroup) error {
	const query = `
		INSERT INTO notifications.behavior_group (id, account_id, org_id, bundle_id, display_name, created)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.ExecContext(ctx, query,
		group.ID,
		group.AccountID,
		group.OrgID,
		group.BundleID,
		group.DisplayName,
		group.Created,
	)
	return classify(err, "insert behavior group")
}

func (t *behaviorTx) UpdateBehaviorGroupName(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID, displayName string) (bool, error) {
	const query = `
		UPDATE notifications.behavior_group
		SET display_name = $1, updated = NOW()
		WHERE id = $2 AND org_id IS NOT DISTINCT FROM $3
	`
	res, err := t.tx.ExecContext(ctx, query, displayName, behaviorGroupID, orgArg(scope))
	if err != nil {
		return false, classify(err, "update behavior group")
	}
	n, err := affected(res, "update behavior group")
	return n > 0, err
}

// DeleteBehaviorGroup relies on ON DELETE CASCADE for links and actions.
func (t *behaviorTx) DeleteBehaviorGroup(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID) (bool, error) {
	const query = `DELETE FROM notifications.behavior_group WHERE id = $1 AND org_id IS NOT DISTINCT FROM $2`
	res, err := t.tx.ExecContext(ctx, query, behaviorGroupID, orgArg(scope))
	if err != nil {
		return false, classify(err, "delete behavior group")
	}
	n, err := affected(res, "delete behavior group")
	return n > 0, err
}

func (t *behaviorTx) ListBehaviorGroupsByBundle(ctx context.Context, scope models.Scope, bundleID uuid.UUID) ([]models.BehaviorGroup, error) {
	const query = `
		SELECT ` + behaviorGroupColumns + `
		FROM notifications.behavior_group bg
		WHERE bg.bundle_id = $1 AND (bg.org_id IS NULL OR bg.org_id = $2)
		ORDER BY bg.created, bg.id
	`
	return t.queryBehaviorGroups(ctx, "list behavior groups", query, bundleID, scope.OrgID())
}

func (t *behaviorTx) BehaviorGroupBundles(ctx context.Context, scope models.Scope, behaviorGroupIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	const query = `
		SELECT id, bundle_id
		FROM notifications.behavior_group
		WHERE id = ANY($1::uuid[]) AND (org_id IS NULL OR org_id = $2)
	`
	rows, err := t.tx.QueryContext(ctx, query, uuidArray(behaviorGroupIDs), scope.OrgID())
	if err != nil {
		return nil, classify(err, "load behavior group bundles")
	}
	defer rows.Close()

	bundles := make(map[uuid.UUID]uuid.UUID, len(behaviorGroupIDs))
	for rows.Next() {
		var id, bundleID uuid.UUID
		if err := rows.Scan(&id, &bundleID); err != nil {
			return nil, classify(err, "scan behavior group bundle")
		}
		bundles[id] = bundleID
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "load behavior group bundles")
	}
	return bundles, nil
}

func (t *behaviorTx) ListEventTypesByBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) ([]models.EventType, error) {
	query := `SELECT` + eventTypeColumns + `
		FROM notifications.event_type_behavior etb
		JOIN notifications.event_type et ON et.id = etb.event_type_id
		JOIN notifications.applications a ON a.id = et.application_id
		WHERE etb.behavior_group_id = $1
		ORDER BY et.name, et.id`

	rows, err := t.tx.QueryContext(ctx, query, behaviorGroupID)
	if err != nil {
		return nil, classify(err, "list linked event types")
	}
	defer rows.Close()

	var eventTypes []models.EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, classify(err, "scan event type")
		}
		eventTypes = append(eventTypes, et)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list linked event types")
	}
	return eventTypes, nil
}

func (t *behaviorTx) ListBehaviorGroupsByEventType(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID, page models.Page) ([]models.BehaviorGroup, error) {
	const query = `
		SELECT ` + behaviorGroupColumns + `
		FROM notifications.behavior_group bg
		JOIN notifications.event_type_behavior etb ON etb.behavior_group_id = bg.id
		WHERE etb.event_type_id = $1 AND (bg.org_id IS NULL OR bg.org_id = $2)
		ORDER BY bg.created, bg.id
		LIMIT $3 OFFSET $4
	`
	return t.queryBehaviorGroups(ctx, "list linked behavior groups", query, eventTypeID, scope.OrgID(), page.Limit, page.Offset)
}

func (t *behaviorTx) queryBehaviorGroups(ctx context.Context, op, query string, args ...interface{}) ([]models.BehaviorGroup, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, op)
	}
	defer rows.Close()

	var groups []models.BehaviorGroup
	for rows.Next() {
		g, err := scanBehaviorGroup(rows)
		if err != nil {
			return nil, classify(err, "scan behavior group")
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, op)
	}
	return groups, nil
}

// DeleteEventTypeBehaviorsExcept only touches links whose group belongs to
// scope, so a replace by one org never drops default or foreign links.
func (t *behaviorTx) DeleteEventTypeBehaviorsExcept(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID, keep []uuid.UUID) (int64, error) {
	const query = `
		DELETE FROM notifications.event_type_behavior etb
		USING notifications.behavior_group bg
		WHERE etb.behavior_group_id = bg.id
		  AND etb.event_type_id = $1
		  AND bg.org_id IS NOT DISTINCT FROM $2
		  AND NOT (etb.behavior_group_id = ANY($3::uuid[]))
	`
	res, err := t.tx.ExecContext(ctx, query, eventTypeID, orgArg(scope), uuidArray(keep))
	if err != nil {
		return 0, classify(err, "delete event type behaviors")
	}
	return affected(res, "delete event type behaviors")
}

func (t *behaviorTx) UpsertEventTypeBehavior(ctx context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	const query = `
		INSERT INTO notifications.event_type_behavior (event_type_id, behavior_group_id, created)
		SELECT $1, bg.id, NOW()
		FROM notifications.behavior_group bg
		WHERE bg.id = $2 AND bg.org_id IS NOT DISTINCT FROM $3
		ON CONFLICT (event_type_id, behavior_group_id) DO NOTHING
	`
	res, err := t.tx.ExecContext(ctx, query, eventTypeID, behaviorGroupID, orgArg(scope))
	if err != nil {
		return false, classify(err, "insert event type behavior")
	}
	n, err := affected(res, "insert event type behavior")
	return n > 0, err
}

func (t *behaviorTx) DeleteEventTypeBehavior(ctx context.Context, scope models.Scope, eventTypeID, behaviorGroupID uuid.UUID) (bool, error) {
	const query = `
		DELETE FROM notifications.event_type_behavior etb
		USING notifications.behavior_group bg
		WHERE etb.behavior_group_id = bg.id
		  AND etb.event_type_id = $1
		  AND etb.behavior_group_id = $2
		  AND bg.org_id IS NOT DISTINCT FROM $3
	`
	res, err := t.tx.ExecContext(ctx, query, eventTypeID, behaviorGroupID, orgArg(scope))
	if err != nil {
		return false, classify(err, "delete event type behavior")
	}
	n, err := affected(res, "delete event type behavior")
	return n > 0, err
}

func (t *behaviorTx) ListActions(ctx context.Context, behaviorGroupIDs []uuid.UUID) ([]models.BehaviorGroupAction, error) {
	query := `SELECT bga.behavior_group_id, bga.endpoint_id, bga.position, bga.created,` + endpointColumns + `
		FROM notifications.behavior_group_action bga
		JOIN notifications.endpoints e ON e.id = bga.endpoint_id` + endpointJoins + `
		WHERE bga.behavior_group_id = ANY($1::uuid[])
		ORDER BY bga.behavior_group_id, bga.position`

	rows, err := t.tx.QueryContext(ctx, query, uuidArray(behaviorGroupIDs))
	if err != nil {
		return nil, classify(err, "list behavior group actions")
	}
	defer rows.Close()

	var actions []models.BehaviorGroupAction
	for rows.Next() {
		var a models.BehaviorGroupAction
		ep, err := scanEndpoint(rows, &a.BehaviorGroupID, &a.EndpointID, &a.Position, &a.Created)
		if err != nil {
			return nil, classify(err, "scan behavior group action")
		}
		a.Endpoint = &ep
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list behavior group actions")
	}
	return actions, nil
}

func (t *behaviorTx) DeleteBehaviorGroupActionsExcept(ctx context.Context, behaviorGroupID uuid.UUID, keep []uuid.UUID) (int64, error) {
	const query = `
		DELETE FROM notifications.behavior_group_action
		WHERE behavior_group_id = $1 AND NOT (endpoint_id = ANY($2::uuid[]))
	`
	res, err := t.tx.ExecContext(ctx, query, behaviorGroupID, uuidArray(keep))
	if err != nil {
		return 0, classify(err, "delete behavior group actions")
	}
	return affected(res, "delete behavior group actions")
}

// UpsertBehaviorGroupAction inserts nothing when the endpoint is missing or
// outside scope, which keeps deleted endpoints from coming back.
func (t *behaviorTx) UpsertBehaviorGroupAction(ctx context.Context, scope models.Scope, behaviorGroupID, endpointID uuid.UUID, position int) (bool, error) {
	const query = `
		INSERT INTO notifications.behavior_group_action (behavior_group_id, endpoint_id, position, created)
		SELECT $1, e.id, $3, NOW()
		FROM notifications.endpoints e
		WHERE e.id = $2 AND e.org_id IS NOT DISTINCT FROM $4
		ON CONFLICT (behavior_group_id, endpoint_id) DO UPDATE SET position = EXCLUDED.position
	`
	res, err := t.tx.ExecContext(ctx, query, behaviorGroupID, endpointID, position, orgArg(scope))
	if err != nil {
		return false, classify(err, "upsert behavior group action")
	}
	n, err := affected(res, "upsert behavior group action")
	return n > 0, err
}

func (t *behaviorTx) ListLinkedEndpoints(ctx context.Context, scope models.Scope, eventTypeID uuid.UUID) ([]models.LinkedEndpoint, error) {
	query := `SELECT bg.id, bg.created, bga.position,` + endpointColumns + `
		FROM notifications.event_type_behavior etb
		JOIN notifications.behavior_group bg ON bg.id = etb.behavior_group_id
		JOIN notifications.behavior_group_action bga ON bga.behavior_group_id = bg.id
		JOIN notifications.endpoints e ON e.id = bga.endpoint_id` + endpointJoins + `
		WHERE etb.event_type_id = $1 AND (bg.org_id IS NULL OR bg.org_id = $2)
		ORDER BY bg.created, bg.id, bga.position`

	rows, err := t.tx.QueryContext(ctx, query, eventTypeID, scope.OrgID())
	if err != nil {
		return nil, classify(err, "list linked endpoints")
	}
	defer rows.Close()

	var linked []models.LinkedEndpoint
	for rows.Next() {
		var l models.LinkedEndpoint
		ep, err := scanEndpoint(rows, &l.BehaviorGroupID, &l.BehaviorGroupCreated, &l.Position)
		if err != nil {
			return nil, classify(err, "scan linked endpoint")
		}
		l.Endpoint = ep
		linked = append(linked, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list linked endpoints")
	}
	return linked, nil
}

func scanBehaviorGroup(scanner rowScanner) (models.BehaviorGroup, error) {
	var (
		g         models.BehaviorGroup
		accountID sql.NullString
		orgID     sql.NullString
		updated   sql.NullTime
	)
	if err := scanner.Scan(&g.ID, &accountID, &orgID, &g.BundleID, &g.DisplayName, &g.Created, &updated); err != nil {
		return models.BehaviorGroup{}, err
	}
	g.AccountID = nullStringPtr(accountID)
	g.OrgID = nullStringPtr(orgID)
	g.Updated = nullTimePtr(updated)
	g.Default = g.OrgID == nil
	return g, nil
}
