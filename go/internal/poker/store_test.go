package poker

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rfontan/pointly/go/internal/models"
)

func newTestStore() *SessionStore {
	return NewSessionStore(clockwork.NewFakeClock())
}

func vote(userID uuid.UUID, value string) models.Vote {
	return models.Vote{UserID: userID, Username: "u-" + value, Value: value}
}

func TestSessionCreatedLazily(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()

	session := store.Session(projectID)
	if session.ProjectID != projectID {
		t.Fatalf("ProjectID = %s, want %s", session.ProjectID, projectID)
	}
	if len(session.Issues) != 0 {
		t.Fatalf("new session has %d issues, want 0", len(session.Issues))
	}
}

func TestAddIssuePreservesInsertionOrder(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()

	first := store.AddIssue(projectID, "first", "")
	second := store.AddIssue(projectID, "second", "")
	third := store.AddIssue(projectID, "third", "")

	if first.Status != models.IssueStatusNotStarted {
		t.Errorf("new issue status = %s, want %s", first.Status, models.IssueStatusNotStarted)
	}

	session := store.Session(projectID)
	wantOrder := []uuid.UUID{first.ID, second.ID, third.ID}
	for i, want := range wantOrder {
		if session.Issues[i].ID != want {
			t.Errorf("issues[%d].ID = %s, want %s", i, session.Issues[i].ID, want)
		}
	}
}

func TestUpsertVoteIdempotent(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "estimate me", "")
	userID := uuid.New()

	if _, err := store.UpsertVote(projectID, issue.ID, vote(userID, "5")); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	updated, err := store.UpsertVote(projectID, issue.ID, vote(userID, "8"))
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}

	if len(updated.Votes) != 1 {
		t.Fatalf("votes = %d, want exactly 1 entry for the user", len(updated.Votes))
	}
	if got := updated.Votes[userID].Value; got != "8" {
		t.Errorf("vote value = %q, want %q (second vote overwrites)", got, "8")
	}
}

func TestUpsertVoteCommutativeAcrossUsers(t *testing.T) {
	userA, userB := uuid.New(), uuid.New()

	cast := func(order []models.Vote) models.Issue {
		store := newTestStore()
		projectID := uuid.New()
		issue := store.AddIssue(projectID, "issue", "")
		var last models.Issue
		for _, v := range order {
			var err error
			last, err = store.UpsertVote(projectID, issue.ID, v)
			if err != nil {
				t.Fatalf("vote: %v", err)
			}
		}
		return last
	}

	ab := cast([]models.Vote{vote(userA, "5"), vote(userB, "8")})
	ba := cast([]models.Vote{vote(userB, "8"), vote(userA, "5")})

	if diff := cmp.Diff(ab.Votes, ba.Votes); diff != "" {
		t.Errorf("vote order changed the final mapping (-ab +ba):\n%s", diff)
	}
}

func TestFirstVoteStartsVoting(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")

	updated, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "3"))
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if updated.Status != models.IssueStatusVoting {
		t.Errorf("status after first vote = %s, want %s", updated.Status, models.IssueStatusVoting)
	}
}

func TestRevealIdempotent(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")
	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "5")); err != nil {
		t.Fatalf("vote: %v", err)
	}

	first, err := store.Reveal(projectID, issue.ID)
	if err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	second, err := store.Reveal(projectID, issue.ID)
	if err != nil {
		t.Fatalf("second reveal: %v", err)
	}

	if first.Status != models.IssueStatusRevealed || second.Status != models.IssueStatusRevealed {
		t.Errorf("statuses = %s, %s, want both %s", first.Status, second.Status, models.IssueStatusRevealed)
	}
	if diff := cmp.Diff(first.Votes, second.Votes); diff != "" {
		t.Errorf("repeated reveal changed snapshot (-first +second):\n%s", diff)
	}
}

func TestRevealRequiresVoting(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")

	if _, err := store.Reveal(projectID, issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reveal before any vote: err = %v, want ErrInvalidTransition", err)
	}
}

func TestVoteRejectedAfterReveal(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")
	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "5")); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := store.Reveal(projectID, issue.ID); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "8")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("vote after reveal: err = %v, want ErrInvalidTransition", err)
	}
}

func TestResetVotesReturnsToNotStarted(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")
	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "5")); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// Reset is only legal from Revealed.
	if _, err := store.ResetVotes(projectID, issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reset while voting: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := store.Reveal(projectID, issue.ID); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	reset, err := store.ResetVotes(projectID, issue.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	if reset.Status != models.IssueStatusNotStarted {
		t.Errorf("status after reset = %s, want %s", reset.Status, models.IssueStatusNotStarted)
	}
	if len(reset.Votes) != 0 {
		t.Errorf("votes after reset = %d, want 0", len(reset.Votes))
	}
}

func TestRemoveIssueIsFinal(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")

	if _, err := store.RemoveIssue(projectID, issue.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "5")); !errors.Is(err, ErrNotFound) {
		t.Errorf("vote after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := store.RemoveIssue(projectID, issue.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestFinishIssueRemovesFromSession(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")
	if _, err := store.UpsertVote(projectID, issue.ID, vote(uuid.New(), "8")); err != nil {
		t.Fatalf("vote: %v", err)
	}

	finished, err := store.FinishIssue(projectID, issue.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Status != models.IssueStatusFinished {
		t.Errorf("status = %s, want %s", finished.Status, models.IssueStatusFinished)
	}

	session := store.Session(projectID)
	if len(session.Issues) != 0 {
		t.Errorf("session still holds %d issues after validation", len(session.Issues))
	}
}

func TestFinishIssueRequiresStartedVoting(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")

	if _, err := store.FinishIssue(projectID, issue.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("finish on NotStarted: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	store := newTestStore()
	projectID := uuid.New()
	issue := store.AddIssue(projectID, "issue", "")
	userID := uuid.New()
	if _, err := store.UpsertVote(projectID, issue.ID, vote(userID, "5")); err != nil {
		t.Fatalf("vote: %v", err)
	}

	snapshot := store.Session(projectID)
	snapshot.Issues[0].Votes[userID] = vote(userID, "13")
	snapshot.Issues[0].Status = models.IssueStatusRevealed

	fresh := store.Session(projectID)
	if got := fresh.Issues[0].Votes[userID].Value; got != "5" {
		t.Errorf("mutating a snapshot leaked into the store: vote = %q", got)
	}
	if fresh.Issues[0].Status != models.IssueStatusVoting {
		t.Errorf("mutating a snapshot leaked into the store: status = %s", fresh.Issues[0].Status)
	}
}
