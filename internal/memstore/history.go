package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

// History keeps events and delivery history in memory.
type History struct {
	mu      sync.RWMutex
	events  map[uuid.UUID]models.Event
	history []models.NotificationHistory
}

func NewHistory() *History {
	return &History{events: map[uuid.UUID]models.Event{}}
}

func (h *History) CreateEvent(_ context.Context, event *models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	stamp(&event.ID, &event.Created, utcNow)
	h.events[event.ID] = *event
	return nil
}

func (h *History) Append(_ context.Context, entry *models.NotificationHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.events[entry.EventID]; !ok {
		return apperror.NotFound("event %s not found", entry.EventID)
	}
	stamp(&entry.ID, &entry.Created, utcNow)
	h.history = append(h.history, *entry)
	return nil
}

func (h *History) ListByEvent(_ context.Context, orgID string, eventID uuid.UUID) ([]models.NotificationHistory, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []models.NotificationHistory
	for _, entry := range h.history {
		if entry.EventID == eventID && h.ownedBy(entry, orgID) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (h *History) ListByEndpoint(_ context.Context, orgID string, endpointID uuid.UUID, page models.Page) ([]models.NotificationHistory, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	page = page.Fill(models.DefaultPageLimit)
	var out []models.NotificationHistory
	for _, entry := range h.history {
		if entry.EndpointID != nil && *entry.EndpointID == endpointID && h.ownedBy(entry, orgID) {
			out = append(out, entry)
		}
	}
	// Newest first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out, nil
}

func (h *History) GetDetails(_ context.Context, orgID string, historyID uuid.UUID) (map[string]interface{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, entry := range h.history {
		if entry.ID == historyID && h.ownedBy(entry, orgID) {
			details := make(map[string]interface{}, len(entry.Details))
			for k, v := range entry.Details {
				details[k] = v
			}
			return details, nil
		}
	}
	return nil, apperror.NotFound("notification history %s not found", historyID)
}

func (h *History) ownedBy(entry models.NotificationHistory, orgID string) bool {
	ev, ok := h.events[entry.EventID]
	return ok && ev.OrgID == strings.TrimSpace(orgID)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
