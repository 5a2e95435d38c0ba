package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/models"
)

type SubscriptionRepository interface {
	// Upsert records the subscribed flag for (org, user, event type, type).
	Upsert(ctx context.Context, sub models.EmailSubscription) error
	// Get returns nil when the user never toggled the subscription.
	Get(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, subType models.SubscriptionType) (*models.EmailSubscription, error)
	List(ctx context.Context, orgID, userID string) ([]models.EmailSubscription, error)
	ListSubscribers(ctx context.Context, orgID string, eventTypeID uuid.UUID, subType models.SubscriptionType) ([]string, error)
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub models.EmailSubscription) error {
	const query = `
		INSERT INTO notifications.email_subscriptions (org_id, user_id, event_type_id, subscription_type, subscribed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id, user_id, event_type_id, subscription_type) DO UPDATE SET subscribed = EXCLUDED.subscribed
	`
	_, err := r.db.ExecContext(ctx, query,
		strings.TrimSpace(sub.OrgID),
		strings.TrimSpace(sub.UserID),
		sub.EventTypeID,
		sub.Type,
		sub.Subscribed,
	)
	return classify(err, "upsert email subscription")
}

func (r *subscriptionRepository) Get(ctx context.Context, orgID, userID string, eventTypeID uuid.UUID, subType models.SubscriptionType) (*models.EmailSubscription, error) {
	const query = `
		SELECT org_id, user_id, event_type_id, subscription_type, subscribed
		FROM notifications.email_subscriptions
		WHERE org_id = $1 AND user_id = $2 AND event_type_id = $3 AND subscription_type = $4
	`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, strings.TrimSpace(orgID), strings.TrimSpace(userID), eventTypeID, subType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, "get email subscription")
	}
	return &sub, nil
}

func (r *subscriptionRepository) List(ctx context.Context, orgID, userID string) ([]models.EmailSubscription, error) {
	const query = `
		SELECT org_id, user_id, event_type_id, subscription_type, subscribed
		FROM notifications.email_subscriptions
		WHERE org_id = $1 AND user_id = $2
		ORDER BY event_type_id, subscription_type
	`
	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(orgID), strings.TrimSpace(userID))
	if err != nil {
		return nil, classify(err, "list email subscriptions")
	}
	defer rows.Close()

	var subs []models.EmailSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, classify(err, "scan email subscription")
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list email subscriptions")
	}
	return subs, nil
}

func (r *subscriptionRepository) ListSubscribers(ctx context.Context, orgID string, eventTypeID uuid.UUID, subType models.SubscriptionType) ([]string, error) {
	const query = `
		SELECT user_id
		FROM notifications.email_subscriptions
		WHERE org_id = $1 AND event_type_id = $2 AND subscription_type = $3 AND subscribed
		ORDER BY user_id
	`
	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(orgID), eventTypeID, subType)
	if err != nil {
		return nil, classify(err, "list subscribers")
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, classify(err, "scan subscriber")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list subscribers")
	}
	return users, nil
}

func scanSubscription(scanner rowScanner) (models.EmailSubscription, error) {
	var sub models.EmailSubscription
	err := scanner.Scan(&sub.OrgID, &sub.UserID, &sub.EventTypeID, &sub.Type, &sub.Subscribed)
	return sub, err
}
