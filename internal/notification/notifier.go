package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/models"
)

// Delivery is one endpoint to notify about one event.
type Delivery struct {
	Event     models.Event
	EventType models.EventType
	Endpoint  models.Endpoint
}

// Notifier delivers an event to an endpoint. The returned details are stored
// on the history row whether or not delivery succeeded.
type Notifier interface {
	Notify(ctx context.Context, delivery Delivery) (map[string]interface{}, error)
}

func sanitizeRecipients(recipients []string) []string {
	var cleaned []string
	for _, recipient := range iterStrings(recipients) {
		if recipient != "" {
			cleaned = append(cleaned, recipient)
		}
	}
	return cleaned
}

func iterStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = strings.TrimSpace(v)
	}
	return result
}

func logNotifyError(logger zerolog.Logger, err error, channel string, d Delivery) {
	if err == nil {
		return
	}
	logger.Warn().
		Err(err).
		Str("event_id", d.Event.ID.String()).
		Str("event_type", d.EventType.Name).
		Str("endpoint_id", d.Endpoint.ID.String()).
		Str("channel", channel).
		Msg("failed to deliver notification")
}

func notifierChannelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
