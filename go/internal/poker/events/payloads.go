package events

import (
	"encoding/json"
	"fmt"

	"github.com/rfontan/pointly/go/internal/models"
)

// IssueAddedPayload is the payload for an issueAdded event.
type IssueAddedPayload struct {
	Issue models.Issue `json:"issue"`
}

// IssueDeletedPayload is the payload for an issueDeleted event. It is also
// emitted when an issue is validated into a sprint: either way the issue left
// the session, and clients must treat later events for its ID as stale.
type IssueDeletedPayload struct {
	IssueID string `json:"issue_id"`
}

// VoteUpdatePayload is the incremental payload for a voteUpdate event: the
// single vote that changed plus the recomputed total.
type VoteUpdatePayload struct {
	IssueID    string `json:"issue_id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Vote       string `json:"vote"`
	TotalVotes int    `json:"total_votes"`
}

// VotesRevealedPayload is the authoritative full snapshot of an issue's vote
// set, emitted on reveal. Clients replace their local vote state for the issue
// with this payload, which repairs any missed voteUpdate.
type VotesRevealedPayload struct {
	IssueID string             `json:"issue_id"`
	Votes   []models.Vote      `json:"votes"`
	Status  models.IssueStatus `json:"status"`
	Summary models.VoteSummary `json:"summary"`
}

// VotesResetPayload is the payload for a votesReset event, emitted when the
// project owner requests a revote.
type VotesResetPayload struct {
	IssueID string             `json:"issue_id"`
	Status  models.IssueStatus `json:"status"`
}

// ParsePayload decodes an event's data into the payload struct for its type.
func ParsePayload(event *Event) (any, error) {
	switch event.Type {
	case EventTypeIssueAdded:
		var payload IssueAddedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeIssueDeleted:
		var payload IssueDeletedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeVoteUpdate:
		var payload VoteUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeVotesRevealed:
		var payload VotesRevealedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeVotesReset:
		var payload VotesResetPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}
