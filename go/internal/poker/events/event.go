package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType tags a poker room event. The values are the wire names clients
// switch on.
type EventType string

const (
	EventTypeIssueAdded    EventType = "issueAdded"
	EventTypeIssueDeleted  EventType = "issueDeleted"
	EventTypeVoteUpdate    EventType = "voteUpdate"
	EventTypeVotesRevealed EventType = "votesRevealed"
	EventTypeVotesReset    EventType = "votesReset"
)

// Event is the envelope broadcast to every connection in a project's room.
// Delivery is best-effort and at-most-once; clients reconcile from payloads
// and self-heal via the full snapshots carried by votesRevealed and the
// initial session fetch.
type Event struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event envelope around a payload struct.
func New(projectID uuid.UUID, eventType EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		ProjectID: projectID.String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}
