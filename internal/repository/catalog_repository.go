package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// CatalogRepository stores bundles, applications and the event types they emit.
type CatalogRepository interface {
	CreateBundle(ctx context.Context, bundle *models.Bundle) error
	CreateApplication(ctx context.Context, app *models.Application) error
	CreateEventType(ctx context.Context, eventType *models.EventType) error
	GetEventType(ctx context.Context, eventTypeID uuid.UUID) (*models.EventType, error)
	FindEventType(ctx context.Context, applicationID uuid.UUID, name string) (*models.EventType, error)
	FindEventTypeByNames(ctx context.Context, bundleName, applicationName, eventTypeName string) (*models.EventType, error)
	GetBundleOf(ctx context.Context, eventTypeID uuid.UUID) (*models.Bundle, error)
	ListEventTypes(ctx context.Context, applicationID uuid.UUID) ([]models.EventType, error)
}

type catalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

const eventTypeColumns = `
	et.id, et.application_id, a.bundle_id, et.name, et.display_name, et.description,
	et.visible, et.subscribed_by_default, et.subscription_locked`

func (r *catalogRepository) CreateBundle(ctx context.Context, bundle *models.Bundle) error {
	const query = `
		INSERT INTO notifications.bundles (id, name, display_name, created)
		VALUES ($1, $2, $3, $4)
	`
	stampRow(&bundle.ID, &bundle.Created)
	_, err := r.db.ExecContext(ctx, query, bundle.ID, strings.TrimSpace(bundle.Name), bundle.DisplayName, bundle.Created)
	return classify(err, "insert bundle")
}

func (r *catalogRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	const query = `
		INSERT INTO notifications.applications (id, bundle_id, name, display_name, created)
		VALUES ($1, $2, $3, $4, $5)
	`
	stampRow(&app.ID, &app.Created)
	_, err := r.db.ExecContext(ctx, query, app.ID, app.BundleID, strings.TrimSpace(app.Name), app.DisplayName, app.Created)
	return classify(err, "insert application")
}

func (r *catalogRepository) CreateEventType(ctx context.Context, eventType *models.EventType) error {
	const bundleQuery = `SELECT bundle_id FROM notifications.applications WHERE id = $1`
	const query = `
		INSERT INTO notifications.event_type
			(id, application_id, name, display_name, description, visible, subscribed_by_default, subscription_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err := r.db.QueryRowContext(ctx, bundleQuery, eventType.ApplicationID).Scan(&eventType.BundleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("application %s not found", eventType.ApplicationID)
		}
		return classify(err, "get application")
	}

	if eventType.ID == uuid.Nil {
		eventType.ID = uuid.New()
	}
	_, err = r.db.ExecContext(ctx, query,
		eventType.ID,
		eventType.ApplicationID,
		strings.TrimSpace(eventType.Name),
		eventType.DisplayName,
		eventType.Description,
		eventType.Visible,
		eventType.SubscribedByDefault,
		eventType.SubscriptionLocked,
	)
	return classify(err, "insert event type")
}

func (r *catalogRepository) GetEventType(ctx context.Context, eventTypeID uuid.UUID) (*models.EventType, error) {
	et, err := getEventType(ctx, r.db, eventTypeID)
	if err != nil {
		return nil, err
	}
	if et == nil {
		return nil, apperror.NotFound("event type %s not found", eventTypeID)
	}
	return et, nil
}

// getEventType returns nil when the event type does not exist.
func getEventType(ctx context.Context, q execer, eventTypeID uuid.UUID) (*models.EventType, error) {
	query := `SELECT` + eventTypeColumns + `
		FROM notifications.event_type et
		JOIN notifications.applications a ON a.id = et.application_id
		WHERE et.id = $1`

	et, err := scanEventType(q.QueryRowContext(ctx, query, eventTypeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "get event type")
	}
	return &et, nil
}

func (r *catalogRepository) FindEventType(ctx context.Context, applicationID uuid.UUID, name string) (*models.EventType, error) {
	query := `SELECT` + eventTypeColumns + `
		FROM notifications.event_type et
		JOIN notifications.applications a ON a.id = et.application_id
		WHERE et.application_id = $1 AND et.name = $2`

	et, err := scanEventType(r.db.QueryRowContext(ctx, query, applicationID, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event type %q not found", name)
		}
		return nil, classify(err, "find event type")
	}
	return &et, nil
}

func (r *catalogRepository) FindEventTypeByNames(ctx context.Context, bundleName, applicationName, eventTypeName string) (*models.EventType, error) {
	query := `SELECT` + eventTypeColumns + `
		FROM notifications.event_type et
		JOIN notifications.applications a ON a.id = et.application_id
		JOIN notifications.bundles b ON b.id = a.bundle_id
		WHERE b.name = $1 AND a.name = $2 AND et.name = $3`

	et, err := scanEventType(r.db.QueryRowContext(ctx, query,
		strings.TrimSpace(bundleName),
		strings.TrimSpace(applicationName),
		strings.TrimSpace(eventTypeName),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event type %s/%s/%s not found", bundleName, applicationName, eventTypeName)
		}
		return nil, classify(err, "find event type")
	}
	return &et, nil
}

func (r *catalogRepository) GetBundleOf(ctx context.Context, eventTypeID uuid.UUID) (*models.Bundle, error) {
	const query = `
		SELECT b.id, b.name, b.display_name, b.created
		FROM notifications.event_type et
		JOIN notifications.applications a ON a.id = et.application_id
		JOIN notifications.bundles b ON b.id = a.bundle_id
		WHERE et.id = $1
	`
	var bundle models.Bundle
	err := r.db.QueryRowContext(ctx, query, eventTypeID).Scan(&bundle.ID, &bundle.Name, &bundle.DisplayName, &bundle.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("bundle of event type %s not found", eventTypeID)
		}
		return nil, classify(err, "get bundle of event type")
	}
	return &bundle, nil
}

func (r *catalogRepository) ListEventTypes(ctx context.Context, applicationID uuid.UUID) ([]models.EventType, error) {
	query := `SELECT` + eventTypeColumns + `
		FROM notifications.event_type et
		JOIN notifications.applications a ON a.id = et.application_id
		WHERE et.application_id = $1
		ORDER BY et.name`

	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, classify(err, "list event types")
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
		return nil, classify(err, "list event types")
	}
	return eventTypes, nil
}

func scanEventType(scanner rowScanner) (models.EventType, error) {
	var (
		et          models.EventType
		description sql.NullString
	)
	if err := scanner.Scan(
		&et.ID,
		&et.ApplicationID,
		&et.BundleID,
		&et.Name,
		&et.DisplayName,
		&description,
		&et.Visible,
		&et.SubscribedByDefault,
		&et.SubscriptionLocked,
	); err != nil {
		return models.EventType{}, err
	}
	et.Description = description.String
	return et, nil
}

func stampRow(id *uuid.UUID, created *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}
