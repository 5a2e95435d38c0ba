package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// NotificationHistoryRepository stores inbound events and one append-only
// history row per delivery attempt. Reads are scoped by the org of the event.
type NotificationHistoryRepository interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	Append(ctx context.Context, history *models.NotificationHistory) error
	ListByEvent(ctx context.Context, orgID string, eventID uuid.UUID) ([]models.NotificationHistory, error)
	ListByEndpoint(ctx context.Context, orgID string, endpointID uuid.UUID, page models.Page) ([]models.NotificationHistory, error)
	GetDetails(ctx context.Context, orgID string, historyID uuid.UUID) (map[string]interface{}, error)
}

type notificationHistoryRepository struct {
	db *sql.DB
}

func NewNotificationHistoryRepository(db *sql.DB) NotificationHistoryRepository {
	return &notificationHistoryRepository{db: db}
}

const historyColumns = `
	nh.id, nh.event_id, nh.endpoint_id, nh.endpoint_type, nh.endpoint_sub_type,
	nh.invocation_time, nh.invocation_result, nh.status, nh.details, nh.created`

func (r *notificationHistoryRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	const query = `
		INSERT INTO notifications.event (id, org_id, account_id, event_type_id, payload, created)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stampRow(&event.ID, &event.Created)

	var payload interface{}
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		strings.TrimSpace(event.OrgID),
		event.AccountID,
		event.EventTypeID,
		payload,
		event.Created,
	)
	return classify(err, "insert event")
}

func (r *notificationHistoryRepository) Append(ctx context.Context, history *models.NotificationHistory) error {
	const query = `
		INSERT INTO notifications.notification_history
			(id, event_id, endpoint_id, endpoint_type, endpoint_sub_type, invocation_time, invocation_result, status, details, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	stampRow(&history.ID, &history.Created)

	var details interface{}
	if len(history.Details) > 0 {
		raw, err := json.Marshal(history.Details)
		if err != nil {
			return errors.Wrap(err, "marshal history details")
		}
		details = raw
	}
	var endpointID interface{}
	if history.EndpointID != nil {
		endpointID = *history.EndpointID
	}

	_, err := r.db.ExecContext(ctx, query,
		history.ID,
		history.EventID,
		endpointID,
		history.EndpointType,
		history.EndpointSubType,
		history.InvocationTime.Milliseconds(),
		history.InvocationResult,
		history.Status,
		details,
		history.Created,
	)
	return classify(err, "insert notification history")
}

func (r *notificationHistoryRepository) ListByEvent(ctx context.Context, orgID string, eventID uuid.UUID) ([]models.NotificationHistory, error) {
	query := `SELECT` + historyColumns + `
		FROM notifications.notification_history nh
		JOIN notifications.event ev ON ev.id = nh.event_id
		WHERE nh.event_id = $1 AND ev.org_id = $2
		ORDER BY nh.created, nh.id`
	return r.queryHistory(ctx, "list event history", query, eventID, strings.TrimSpace(orgID))
}

func (r *notificationHistoryRepository) ListByEndpoint(ctx context.Context, orgID string, endpointID uuid.UUID, page models.Page) ([]models.NotificationHistory, error) {
	page = page.Fill(models.DefaultPageLimit)
	query := `SELECT` + historyColumns + `
		FROM notifications.notification_history nh
		JOIN notifications.event ev ON ev.id = nh.event_id
		WHERE nh.endpoint_id = $1 AND ev.org_id = $2
		ORDER BY nh.created DESC, nh.id
		LIMIT $3 OFFSET $4`
	return r.queryHistory(ctx, "list endpoint history", query, endpointID, strings.TrimSpace(orgID), page.Limit, page.Offset)
}

func (r *notificationHistoryRepository) GetDetails(ctx context.Context, orgID string, historyID uuid.UUID) (map[string]interface{}, error) {
	const query = `
		SELECT nh.details
		FROM notifications.notification_history nh
		JOIN notifications.event ev ON ev.id = nh.event_id
		WHERE nh.id = $1 AND ev.org_id = $2
	`
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, historyID, strings.TrimSpace(orgID)).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("notification history %s not found", historyID)
		}
		return nil, classify(err, "get history details")
	}
	details := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &details); err != nil {
			return nil, errors.Wrap(err, "decode history details")
		}
	}
	return details, nil
}

func (r *notificationHistoryRepository) queryHistory(ctx context.Context, op, query string, args ...interface{}) ([]models.NotificationHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, op)
	}
	defer rows.Close()

	var history []models.NotificationHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, classify(err, "scan notification history")
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, op)
	}
	return history, nil
}

func scanHistory(scanner rowScanner) (models.NotificationHistory, error) {
	var (
		h          models.NotificationHistory
		endpointID uuid.NullUUID
		subType    sql.NullString
		millis     int64
		details    []byte
	)
	if err := scanner.Scan(
		&h.ID,
		&h.EventID,
		&endpointID,
		&h.EndpointType,
		&subType,
		&millis,
		&h.InvocationResult,
		&h.Status,
		&details,
		&h.Created,
	); err != nil {
		return models.NotificationHistory{}, err
	}
	if endpointID.Valid {
		id := endpointID.UUID
		h.EndpointID = &id
	}
	h.EndpointSubType = nullStringPtr(subType)
	h.InvocationTime = time.Duration(millis) * time.Millisecond
	if len(details) > 0 {
		if err := json.Unmarshal(details, &h.Details); err != nil {
			return models.NotificationHistory{}, errors.Wrap(err, "decode history details")
		}
	}
	return h, nil
}
