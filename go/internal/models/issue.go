package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// IssueStatus defines the lifecycle state of an issue inside an estimation session.
type IssueStatus string

const (
	IssueStatusNotStarted IssueStatus = "NOT_STARTED"
	IssueStatusVoting     IssueStatus = "VOTING"
	IssueStatusRevealed   IssueStatus = "REVEALED"
	IssueStatusFinished   IssueStatus = "FINISHED"
)

// Vote is a single user's current card for an issue. The Votes map on Issue is
// keyed by UserID, so a user can never hold more than one entry.
type Vote struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Value    string    `json:"value"`
}

// Issue represents a unit of work being estimated. When an issue is validated
// into a sprint its ID is reused as the task ID, which is how the backlog side
// correlates the two records.
type Issue struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      IssueStatus        `json:"status"`
	Votes       map[uuid.UUID]Vote `json:"votes"`
	CreatedAt   time.Time          `json:"created_at"`
}

// CanAcceptVotes reports whether a cast vote is legal in the current state.
// Casting on a NotStarted issue implicitly moves it to Voting.
func (s IssueStatus) CanAcceptVotes() bool {
	return s == IssueStatusNotStarted || s == IssueStatusVoting
}

// CanReveal reports whether a reveal is legal. Revealing an already revealed
// issue is allowed so the snapshot can be re-emitted to late clients.
func (s IssueStatus) CanReveal() bool {
	return s == IssueStatusVoting || s == IssueStatusRevealed
}

// CanReset reports whether a revote reset is legal.
func (s IssueStatus) CanReset() bool {
	return s == IssueStatusRevealed
}

// CanFinish reports whether the issue can be validated into a sprint task.
func (s IssueStatus) CanFinish() bool {
	return s == IssueStatusVoting || s == IssueStatusRevealed
}

// VoteList returns the votes in a stable order (by username, then user ID) for
// wire payloads and display.
func (i *Issue) VoteList() []Vote {
	votes := make([]Vote, 0, len(i.Votes))
	for _, v := range i.Votes {
		votes = append(votes, v)
	}
	sort.Slice(votes, func(a, b int) bool {
		if votes[a].Username != votes[b].Username {
			return votes[a].Username < votes[b].Username
		}
		return votes[a].UserID.String() < votes[b].UserID.String()
	})
	return votes
}
