package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/models"
)

// SubscriberLookup lists the users of an org opted in to an event type.
type SubscriberLookup interface {
	ListSubscribers(ctx context.Context, orgID string, eventTypeID uuid.UUID, t models.SubscriptionType) ([]string, error)
}

// SubscriptionNotifier serves EMAIL_SUBSCRIPTION and DRAWER endpoints. It
// resolves the subscribed users and hands them to the outbound mail queue,
// which lives outside this service.
type SubscriptionNotifier struct {
	subscribers SubscriberLookup
	logger      zerolog.Logger
}

func NewSubscriptionNotifier(subscribers SubscriberLookup, logger zerolog.Logger) *SubscriptionNotifier {
	return &SubscriptionNotifier{
		subscribers: subscribers,
		logger:      logger.With().Str("notifier", "subscription").Logger(),
	}
}

func (n *SubscriptionNotifier) Notify(ctx context.Context, d Delivery) (map[string]interface{}, error) {
	subType := models.SubscriptionInstant
	switch d.Endpoint.Type {
	case models.EndpointTypeEmailSubscription:
	case models.EndpointTypeDrawer:
		subType = models.SubscriptionDrawer
	default:
		return nil, fmt.Errorf("subscription notifier cannot deliver to %s endpoints", d.Endpoint.Type)
	}

	details := map[string]interface{}{
		"type":              string(d.Endpoint.Type),
		"subscription_type": string(subType),
	}
	if props, ok := d.Endpoint.Properties.(models.SystemSubscriptionProperties); ok {
		details["only_admins"] = props.OnlyAdmins
		if props.GroupID != nil {
			details["group_id"] = props.GroupID.String()
		}
	}

	users, err := n.subscribers.ListSubscribers(ctx, d.Event.OrgID, d.EventType.ID, subType)
	if err != nil {
		return details, err
	}
	recipients := sanitizeRecipients(users)
	if recipients == nil {
		recipients = []string{}
	}
	details["recipients"] = recipients

	n.logger.Info().
		Str("event_id", d.Event.ID.String()).
		Str("event_type", d.EventType.Name).
		Str("subscription_type", string(subType)).
		Int("recipients", len(recipients)).
		Msg("subscription notification queued")
	return details, nil
}

func (n *SubscriptionNotifier) String() string {
	return "SubscriptionNotifier"
}
