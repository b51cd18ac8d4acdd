package poker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/models"
	"github.com/rfontan/pointly/go/internal/poker/events"
)

// ProjectRepository defines what the app layer needs from the projects side:
// membership and ownership checks plus display-name resolution. Authentication
// itself happens upstream; by the time an operation reaches the app the caller
// identity is trusted.
type ProjectRepository interface {
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	IsOwner(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	GetUsername(ctx context.Context, userID uuid.UUID) (string, error)
}

// SprintRepository defines what the app layer needs from the backlog/sprint
// side: turning a validated issue into a sprint task.
type SprintRepository interface {
	CreateSprintTask(ctx context.Context, req CreateSprintTaskRequest) (uuid.UUID, error)
}

// EventPublisher delivers room events. Publishing is fire-and-forget relative
// to the initiating caller: a failed publish is logged, never surfaced as an
// operation failure, because the mutation already succeeded and the next full
// snapshot re-synchronizes any client that missed it.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// CreateSprintTaskRequest is the hand-off for a validated issue. TaskID reuses
// the issue ID so the backlog side can correlate the two records.
type CreateSprintTaskRequest struct {
	ProjectID   uuid.UUID  `json:"project_id"`
	SprintID    *uuid.UUID `json:"sprint_id,omitempty"`
	TaskID      uuid.UUID  `json:"task_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Estimate    string     `json:"estimate"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	// Votes carries the final vote record so the backlog side can keep it as
	// task metadata.
	Votes []models.Vote `json:"votes,omitempty"`
}

// ValidateIssueRequest carries the owner's validation of an estimated issue.
type ValidateIssueRequest struct {
	FinalEstimate string     `json:"final_estimate"`
	SprintID      *uuid.UUID `json:"sprint_id,omitempty"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// App is the session gateway: the single entry point for poker operations.
// Every operation validates the caller's membership, applies the mutation
// through the store, then broadcasts to the project's room. Validation errors
// return before any mutation; a failed operation never partially mutates.
type App struct {
	store     *SessionStore
	projects  ProjectRepository
	sprints   SprintRepository
	publisher EventPublisher
}

// NewApp creates a new poker App.
func NewApp(store *SessionStore, projects ProjectRepository, sprints SprintRepository, publisher EventPublisher) *App {
	return &App{
		store:     store,
		projects:  projects,
		sprints:   sprints,
		publisher: publisher,
	}
}

// Authorize reports whether userID may take part in projectID's session. The
// WebSocket handler uses it before upgrading and on room re-binds.
func (a *App) Authorize(ctx context.Context, projectID, userID uuid.UUID) error {
	return a.requireMember(ctx, projectID, userID)
}

// GetSession returns the full session snapshot for a project, creating a
// dormant session on first touch. Clients use it as the initial state their
// event stream reconciles against.
func (a *App) GetSession(ctx context.Context, projectID, callerID uuid.UUID) (models.Session, error) {
	if err := a.requireMember(ctx, projectID, callerID); err != nil {
		return models.Session{}, err
	}
	return a.store.Session(projectID), nil
}

// AddIssue creates a NotStarted issue at the end of the session's display
// order and broadcasts issueAdded.
func (a *App) AddIssue(ctx context.Context, projectID, callerID uuid.UUID, title, description string) (models.Issue, error) {
	if err := a.requireMember(ctx, projectID, callerID); err != nil {
		return models.Issue{}, err
	}

	issue := a.store.AddIssue(projectID, title, description)
	a.broadcast(ctx, projectID, events.EventTypeIssueAdded, events.IssueAddedPayload{Issue: issue})

	log.Debug().
		Str("project_id", projectID.String()).
		Str("issue_id", issue.ID.String()).
		Msg("issue added to session")
	return issue, nil
}

// CastVote upserts the caller's vote on an issue. The first vote on a
// NotStarted issue implicitly starts voting; a second vote from the same user
// overwrites the first. Broadcasts voteUpdate with the changed vote and the
// recomputed total.
func (a *App) CastVote(ctx context.Context, projectID, issueID, callerID uuid.UUID, value string) error {
	if err := a.requireMember(ctx, projectID, callerID); err != nil {
		return err
	}
	if !models.ValidCard(value) {
		return fmt.Errorf("%w: %q", ErrInvalidVote, value)
	}

	username, err := a.projects.GetUsername(ctx, callerID)
	if err != nil {
		return fmt.Errorf("resolve username: %w", err)
	}

	issue, err := a.store.UpsertVote(projectID, issueID, models.Vote{
		UserID:   callerID,
		Username: username,
		Value:    value,
	})
	if err != nil {
		return err
	}

	a.broadcast(ctx, projectID, events.EventTypeVoteUpdate, events.VoteUpdatePayload{
		IssueID:    issueID.String(),
		UserID:     callerID.String(),
		Username:   username,
		Vote:       value,
		TotalVotes: len(issue.Votes),
	})
	return nil
}

// RevealVotes makes all cast votes visible and broadcasts the authoritative
// snapshot with server-computed aggregates. Any member may reveal. Idempotent:
// revealing an already revealed issue re-emits the current snapshot.
func (a *App) RevealVotes(ctx context.Context, projectID, issueID, callerID uuid.UUID) (models.Issue, models.VoteSummary, error) {
	if err := a.requireMember(ctx, projectID, callerID); err != nil {
		return models.Issue{}, models.VoteSummary{}, err
	}

	issue, err := a.store.Reveal(projectID, issueID)
	if err != nil {
		return models.Issue{}, models.VoteSummary{}, err
	}

	summary := Summarize(issue.Votes)
	a.broadcast(ctx, projectID, events.EventTypeVotesRevealed, events.VotesRevealedPayload{
		IssueID: issueID.String(),
		Votes:   issue.VoteList(),
		Status:  issue.Status,
		Summary: summary,
	})
	return issue, summary, nil
}

// RequestRevote clears a revealed issue's votes and returns it to NotStarted.
// Owner-only.
func (a *App) RequestRevote(ctx context.Context, projectID, issueID, callerID uuid.UUID) error {
	if err := a.requireOwner(ctx, projectID, callerID); err != nil {
		return err
	}

	issue, err := a.store.ResetVotes(projectID, issueID)
	if err != nil {
		return err
	}

	a.broadcast(ctx, projectID, events.EventTypeVotesReset, events.VotesResetPayload{
		IssueID: issueID.String(),
		Status:  issue.Status,
	})
	return nil
}

// DeleteIssue removes an issue from the session regardless of status and
// broadcasts issueDeleted. Deletion is irreversible; clients must treat any
// later event referencing the ID as stale.
func (a *App) DeleteIssue(ctx context.Context, projectID, issueID, callerID uuid.UUID) error {
	if err := a.requireMember(ctx, projectID, callerID); err != nil {
		return err
	}

	if _, err := a.store.RemoveIssue(projectID, issueID); err != nil {
		return err
	}

	a.broadcast(ctx, projectID, events.EventTypeIssueDeleted, events.IssueDeletedPayload{
		IssueID: issueID.String(),
	})
	return nil
}

// ValidateIssue finalizes an issue's estimate, hands it to the sprint side as
// a task, removes it from the session, and broadcasts issueDeleted (clients
// only need to know the issue left the session). Owner-only.
//
// The sprint task is created before the issue is removed: if the hand-off
// fails the session is untouched and the owner can retry.
func (a *App) ValidateIssue(ctx context.Context, projectID, issueID, callerID uuid.UUID, req ValidateIssueRequest) error {
	if err := a.requireOwner(ctx, projectID, callerID); err != nil {
		return err
	}

	session := a.store.Session(projectID)
	issue := session.IssueByID(issueID)
	if issue == nil {
		return ErrNotFound
	}
	if !issue.Status.CanFinish() {
		return ErrInvalidTransition
	}

	taskID, err := a.sprints.CreateSprintTask(ctx, CreateSprintTaskRequest{
		ProjectID:   projectID,
		SprintID:    req.SprintID,
		TaskID:      issue.ID,
		Title:       issue.Title,
		Description: issue.Description,
		Estimate:    req.FinalEstimate,
		AssignedTo:  req.AssignedTo,
		Deadline:    req.Deadline,
		Votes:       issue.VoteList(),
	})
	if err != nil {
		return fmt.Errorf("create sprint task: %w", err)
	}

	if _, err := a.store.FinishIssue(projectID, issueID); err != nil {
		// The task exists but the issue was removed concurrently; the session
		// is already in the desired end state, so only log it.
		log.Warn().Err(err).
			Str("project_id", projectID.String()).
			Str("issue_id", issueID.String()).
			Msg("issue vanished between sprint hand-off and removal")
	}

	a.broadcast(ctx, projectID, events.EventTypeIssueDeleted, events.IssueDeletedPayload{
		IssueID: issueID.String(),
	})

	log.Info().
		Str("project_id", projectID.String()).
		Str("issue_id", issueID.String()).
		Str("task_id", taskID.String()).
		Str("estimate", req.FinalEstimate).
		Msg("issue validated into sprint task")
	return nil
}

func (a *App) requireMember(ctx context.Context, projectID, userID uuid.UUID) error {
	ok, err := a.projects.IsMember(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (a *App) requireOwner(ctx context.Context, projectID, userID uuid.UUID) error {
	ok, err := a.projects.IsOwner(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("ownership lookup: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (a *App) broadcast(ctx context.Context, projectID uuid.UUID, eventType events.EventType, payload any) {
	event, err := events.New(projectID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event_type", string(eventType)).
			Str("project_id", projectID.String()).
			Msg("best-effort broadcast failed")
	}
}
