package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rfontan/pointly/go/internal/models"
)

func TestNewEnvelope(t *testing.T) {
	projectID := uuid.New()

	event, err := New(projectID, EventTypeIssueDeleted, IssueDeletedPayload{IssueID: "abc"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if event.ProjectID != projectID.String() {
		t.Errorf("ProjectID = %s, want %s", event.ProjectID, projectID)
	}
	if event.Type != EventTypeIssueDeleted {
		t.Errorf("Type = %s, want %s", event.Type, EventTypeIssueDeleted)
	}
	if event.ID == "" {
		t.Error("event ID is empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("event timestamp is zero")
	}
}

func TestParsePayloadCoversEveryType(t *testing.T) {
	userID := uuid.New()
	issue := models.Issue{
		ID:     uuid.New(),
		Title:  "login flow",
		Status: models.IssueStatusVoting,
		Votes: map[uuid.UUID]models.Vote{
			userID: {UserID: userID, Username: "alice", Value: "5"},
		},
	}

	tests := []struct {
		name    string
		typ     EventType
		payload any
	}{
		{
			name:    "issueAdded",
			typ:     EventTypeIssueAdded,
			payload: IssueAddedPayload{Issue: issue},
		},
		{
			name:    "issueDeleted",
			typ:     EventTypeIssueDeleted,
			payload: IssueDeletedPayload{IssueID: issue.ID.String()},
		},
		{
			name: "voteUpdate",
			typ:  EventTypeVoteUpdate,
			payload: VoteUpdatePayload{
				IssueID:    issue.ID.String(),
				UserID:     userID.String(),
				Username:   "alice",
				Vote:       "5",
				TotalVotes: 1,
			},
		},
		{
			name: "votesRevealed",
			typ:  EventTypeVotesRevealed,
			payload: VotesRevealedPayload{
				IssueID: issue.ID.String(),
				Votes:   issue.VoteList(),
				Status:  models.IssueStatusRevealed,
				Summary: models.VoteSummary{
					Average:    5,
					MostCommon: 5,
					Range:      models.VoteRange{Min: 5, Max: 5},
				},
			},
		},
		{
			name: "votesReset",
			typ:  EventTypeVotesReset,
			payload: VotesResetPayload{
				IssueID: issue.ID.String(),
				Status:  models.IssueStatusNotStarted,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := New(uuid.New(), tt.typ, tt.payload)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			got, err := ParsePayload(event)
			if err != nil {
				t.Fatalf("ParsePayload: %v", err)
			}
			if diff := cmp.Diff(tt.payload, got); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePayloadUnknownType(t *testing.T) {
	event, err := New(uuid.New(), EventType("somethingElse"), map[string]string{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := ParsePayload(event); err == nil {
		t.Error("ParsePayload accepted an unknown event type")
	}
}
