package repository_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

var q = regexp.QuoteMeta

var eventTypeCols = []string{
	"id", "application_id", "bundle_id", "name", "display_name", "description",
	"visible", "subscribed_by_default", "subscription_locked",
}

var groupCols = []string{"id", "account_id", "org_id", "bundle_id", "display_name", "created", "updated"}

func newService(t *testing.T) (*behavior.Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return behavior.NewService(repository.NewBehaviorGroupStore(db), zerolog.Nop()), mock
}

func expectEventType(mock sqlmock.Sqlmock, eventTypeID, bundleID uuid.UUID) {
	mock.ExpectQuery(q("FROM notifications.event_type et JOIN notifications.applications a ON a.id = et.application_id WHERE et.id = $1")).
		WithArgs(eventTypeID).
		WillReturnRows(sqlmock.NewRows(eventTypeCols).
			AddRow(eventTypeID.String(), uuid.NewString(), bundleID.String(), "policy-triggered", "Policy triggered", nil, true, false, false))
}

func expectLock(mock sqlmock.Sqlmock, table string, id uuid.UUID) {
	mock.ExpectQuery(q("SELECT id FROM notifications." + table + " WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))
}

func TestUpdateEventTypeBehaviorsSingleTransaction(t *testing.T) {
	svc, mock := newService(t)
	eventTypeID, bundleID := uuid.New(), uuid.New()
	g1, g2 := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectLock(mock, "event_type", eventTypeID)
	expectEventType(mock, eventTypeID, bundleID)
	mock.ExpectQuery(q("SELECT id, bundle_id FROM notifications.behavior_group WHERE id = ANY($1::uuid[])")).
		WithArgs(sqlmock.AnyArg(), "acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bundle_id"}).
			AddRow(g1.String(), bundleID.String()).
			AddRow(g2.String(), bundleID.String()))
	mock.ExpectExec(q("DELETE FROM notifications.event_type_behavior etb USING notifications.behavior_group bg")).
		WithArgs(eventTypeID, "acme", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO notifications.event_type_behavior")).
		WithArgs(eventTypeID, g1, "acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("ON CONFLICT (event_type_id, behavior_group_id) DO NOTHING")).
		WithArgs(eventTypeID, g2, "acme").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := svc.UpdateEventTypeBehaviors(context.Background(), "acme", eventTypeID, []uuid.UUID{g1, g2, g1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventTypeBehaviorsRollsBackOnBundleMismatch(t *testing.T) {
	svc, mock := newService(t)
	eventTypeID, bundleID := uuid.New(), uuid.New()
	g1 := uuid.New()

	mock.ExpectBegin()
	expectLock(mock, "event_type", eventTypeID)
	expectEventType(mock, eventTypeID, bundleID)
	mock.ExpectQuery(q("FROM notifications.behavior_group WHERE id = ANY($1::uuid[])")).
		WithArgs(sqlmock.AnyArg(), "acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "bundle_id"}).AddRow(g1.String(), uuid.NewString()))
	mock.ExpectRollback()

	err := svc.UpdateEventTypeBehaviors(context.Background(), "acme", eventTypeID, []uuid.UUID{g1})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalid(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBehaviorGroupActionsWritesPositions(t *testing.T) {
	svc, mock := newService(t)
	groupID, bundleID := uuid.New(), uuid.New()
	endpoints := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	mock.ExpectBegin()
	expectLock(mock, "behavior_group", groupID)
	mock.ExpectQuery(q("FROM notifications.behavior_group bg WHERE bg.id = $1")).
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows(groupCols).
			AddRow(groupID.String(), "123", "acme", bundleID.String(), "Acme Alerts", time.Now(), nil))
	mock.ExpectExec(q("DELETE FROM notifications.behavior_group_action WHERE behavior_group_id = $1")).
		WithArgs(groupID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	for position, endpointID := range endpoints {
		mock.ExpectExec(q("ON CONFLICT (behavior_group_id, endpoint_id) DO UPDATE SET position = EXCLUDED.position")).
			WithArgs(groupID, endpointID, position, "acme").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, svc.UpdateBehaviorGroupActions(context.Background(), "acme", groupID, endpoints))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBehaviorGroupActionsNotFoundForOtherOrg(t *testing.T) {
	svc, mock := newService(t)
	groupID := uuid.New()

	mock.ExpectBegin()
	expectLock(mock, "behavior_group", groupID)
	mock.ExpectQuery(q("FROM notifications.behavior_group bg WHERE bg.id = $1")).
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows(groupCols).
			AddRow(groupID.String(), nil, "globex", uuid.NewString(), "Theirs", time.Now(), nil))
	mock.ExpectRollback()

	err := svc.UpdateBehaviorGroupActions(context.Background(), "acme", groupID, []uuid.UUID{uuid.New()})
	assert.True(t, apperror.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventTypeBehaviorsMissingEventTypeRollsBack(t *testing.T) {
	svc, mock := newService(t)
	eventTypeID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM notifications.event_type WHERE id = $1 FOR UPDATE")).
		WithArgs(eventTypeID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("FROM notifications.event_type et JOIN notifications.applications a ON a.id = et.application_id WHERE et.id = $1")).
		WithArgs(eventTypeID).
		WillReturnRows(sqlmock.NewRows(eventTypeCols))
	mock.ExpectRollback()

	err := svc.UpdateEventTypeBehaviors(context.Background(), "acme", eventTypeID, []uuid.UUID{uuid.New()})
	assert.True(t, apperror.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBehaviorGroupActionsLockFailureRollsBack(t *testing.T) {
	svc, mock := newService(t)
	groupID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM notifications.behavior_group WHERE id = $1 FOR UPDATE")).
		WithArgs(groupID).
		WillReturnError(&pq.Error{Code: "08006"})
	mock.ExpectRollback()

	err := svc.UpdateBehaviorGroupActions(context.Background(), "acme", groupID, []uuid.UUID{uuid.New()})
	assert.True(t, apperror.IsUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultScopeUsesNullOrg(t *testing.T) {
	svc, mock := newService(t)
	groupID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM notifications.behavior_group bg WHERE bg.id = $1")).
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows(groupCols).
			AddRow(groupID.String(), nil, nil, uuid.NewString(), "Global Alert", time.Now(), nil))
	mock.ExpectExec(q("DELETE FROM notifications.behavior_group WHERE id = $1 AND org_id IS NOT DISTINCT FROM $2")).
		WithArgs(groupID, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := svc.DeleteDefaultBehaviorGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.True(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBehaviorGroupDuplicateNameIsConflict(t *testing.T) {
	svc, mock := newService(t)
	bundleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT EXISTS (SELECT 1 FROM notifications.bundles WHERE id = $1)")).
		WithArgs(bundleID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q("WHERE bundle_id = $1 AND display_name = $2 AND org_id IS NOT DISTINCT FROM $3")).
		WithArgs(bundleID, "Acme Alerts", "acme", uuid.Nil).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(q("INSERT INTO notifications.behavior_group")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "behavior_group_org_bundle_name_key"})
	mock.ExpectRollback()

	_, err := svc.CreateBehaviorGroup(context.Background(), "acme", models.BehaviorGroup{DisplayName: "Acme Alerts", BundleID: bundleID})
	assert.True(t, apperror.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUnavailable(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectBegin().WillReturnError(&pq.Error{Code: "08006"})

	_, err := svc.FindDefaultBehaviorGroupsByBundleID(context.Background(), uuid.New())
	assert.True(t, apperror.IsUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveEndpointsOverPostgres(t *testing.T) {
	svc, mock := newService(t)
	eventTypeID, bundleID := uuid.New(), uuid.New()
	groupID, endpointID := uuid.New(), uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cols := append([]string{"bg_id", "bg_created", "position"}, endpointCols...)
	mock.ExpectBegin()
	expectEventType(mock, eventTypeID, bundleID)
	mock.ExpectQuery(q("ORDER BY bg.created, bg.id, bga.position")).
		WithArgs(eventTypeID, "acme").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(append([]driver.Value{groupID.String(), created, 0}, webhookRow(endpointID, true)...)...).
			AddRow(append([]driver.Value{groupID.String(), created, 1}, webhookRow(uuid.New(), false)...)...))
	mock.ExpectCommit()

	endpoints, err := svc.ResolveEndpoints(context.Background(), "acme", eventTypeID)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, endpointID, endpoints[0].ID)
	assert.Equal(t, models.WebhookProperties{URL: "https://acme.example.com/hook", Method: "POST"}, endpoints[0].Properties)
	require.NoError(t, mock.ExpectationsWereMet())
}
