package data

import (
	"time"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/google/uuid"
)

type EventType string

const (
	EventRequestCreated         EventType = "request.created"
	EventMasterApplied          EventType = "master.applied"
	EventCandidateAdded         EventType = "candidate.added"
	EventCandidateStatusChanged EventType = "candidate.status_changed"
	EventMasterAssigned         EventType = "master.assigned"
	EventMasterUnassigned       EventType = "master.unassigned"
	EventRequestStatusChanged   EventType = "request.status_changed"
)

// Event wird als JSON an die Automatisierungs-Webhooks geschickt.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	RequestID  string         `json:"request_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

func NewEvent(eventType EventType, requestID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		RequestID:  requestID,
		Payload:    payload,
	}
}

// Delivery enthält das Event und das Ziel für die Zustellung durch die Worker.
type Delivery struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Event     Event     `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Attempts  int       `json:"attempts"`
}

// Subscribes meldet, ob der Endpunkt den Eventtyp abonniert hat. Ohne Liste gelten alle.
func (e *EndpointConfig) Subscribes(t EventType) bool {
	return len(e.Events) == 0 || slice.Contain(e.Events, string(t))
}
