package poker

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rfontan/pointly/go/internal/models"
)

// SessionStore owns every live estimation session, keyed by project ID. It is
// the single mutable shared resource of the poker core: all mutation goes
// through the App after a membership check, and every transition rule is
// enforced here. Sessions are created lazily and kept dormant when empty;
// finished or deleted issues are removed outright, never soft-deleted.
//
// The store hands out deep copies, so callers can marshal or inspect results
// without racing later mutations.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*models.Session
	clock    clockwork.Clock
}

// NewSessionStore creates an empty store. In production pass
// clockwork.NewRealClock(); tests inject a FakeClock.
func NewSessionStore(clock clockwork.Clock) *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
		clock:    clock,
	}
}

// Session returns a snapshot of the project's session, creating the session if
// this is the project's first touch.
func (s *SessionStore) Session(projectID uuid.UUID) models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreate(projectID)
	return copySession(session)
}

// AddIssue appends a new NotStarted issue to the session and returns a copy.
func (s *SessionStore) AddIssue(projectID uuid.UUID, title, description string) models.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreate(projectID)
	issue := &models.Issue{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      models.IssueStatusNotStarted,
		Votes:       make(map[uuid.UUID]models.Vote),
		CreatedAt:   s.clock.Now(),
	}
	session.Issues = append(session.Issues, issue)
	return copyIssue(issue)
}

// UpsertVote records a user's vote on an issue, replacing any previous vote by
// the same user. The first vote on a NotStarted issue implicitly starts
// voting. Returns the issue after the upsert.
func (s *SessionStore) UpsertVote(projectID, issueID uuid.UUID, vote models.Vote) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, err := s.findIssue(projectID, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	if !issue.Status.CanAcceptVotes() {
		return models.Issue{}, ErrInvalidTransition
	}

	issue.Votes[vote.UserID] = vote
	if issue.Status == models.IssueStatusNotStarted {
		issue.Status = models.IssueStatusVoting
	}
	return copyIssue(issue), nil
}

// Reveal moves an issue to Revealed and returns its snapshot. Revealing an
// already revealed issue is a no-op that still returns the snapshot, so the
// event can be re-emitted to clients that missed the first one.
func (s *SessionStore) Reveal(projectID, issueID uuid.UUID) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, err := s.findIssue(projectID, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	if !issue.Status.CanReveal() {
		return models.Issue{}, ErrInvalidTransition
	}

	issue.Status = models.IssueStatusRevealed
	return copyIssue(issue), nil
}

// ResetVotes clears a revealed issue's votes and returns it to NotStarted.
func (s *SessionStore) ResetVotes(projectID, issueID uuid.UUID) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, err := s.findIssue(projectID, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	if !issue.Status.CanReset() {
		return models.Issue{}, ErrInvalidTransition
	}

	issue.Votes = make(map[uuid.UUID]models.Vote)
	issue.Status = models.IssueStatusNotStarted
	return copyIssue(issue), nil
}

// RemoveIssue deletes an issue from the session regardless of its status.
// Deletion is irreversible; later operations on the ID report ErrNotFound.
func (s *SessionStore) RemoveIssue(projectID, issueID uuid.UUID) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(projectID, issueID)
}

// FinishIssue validates an issue out of the session. Unlike RemoveIssue it
// requires the issue to be in a finishable state (Voting or Revealed); the
// removed snapshot carries the votes for the hand-off to the sprint side.
func (s *SessionStore) FinishIssue(projectID, issueID uuid.UUID) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, err := s.findIssue(projectID, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	if !issue.Status.CanFinish() {
		return models.Issue{}, ErrInvalidTransition
	}

	removed, err := s.remove(projectID, issueID)
	if err != nil {
		return models.Issue{}, err
	}
	removed.Status = models.IssueStatusFinished
	return removed, nil
}

func (s *SessionStore) getOrCreate(projectID uuid.UUID) *models.Session {
	session, ok := s.sessions[projectID]
	if !ok {
		session = &models.Session{
			ProjectID: projectID,
			Issues:    make([]*models.Issue, 0),
			CreatedAt: s.clock.Now(),
		}
		s.sessions[projectID] = session
	}
	return session
}

func (s *SessionStore) findIssue(projectID, issueID uuid.UUID) (*models.Issue, error) {
	session, ok := s.sessions[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	issue := session.IssueByID(issueID)
	if issue == nil {
		return nil, ErrNotFound
	}
	return issue, nil
}

func (s *SessionStore) remove(projectID, issueID uuid.UUID) (models.Issue, error) {
	session, ok := s.sessions[projectID]
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	for i, issue := range session.Issues {
		if issue.ID == issueID {
			session.Issues = append(session.Issues[:i], session.Issues[i+1:]...)
			return copyIssue(issue), nil
		}
	}
	return models.Issue{}, ErrNotFound
}

func copyIssue(issue *models.Issue) models.Issue {
	out := *issue
	out.Votes = make(map[uuid.UUID]models.Vote, len(issue.Votes))
	for id, v := range issue.Votes {
		out.Votes[id] = v
	}
	return out
}

func copySession(session *models.Session) models.Session {
	out := models.Session{
		ProjectID: session.ProjectID,
		Issues:    make([]*models.Issue, 0, len(session.Issues)),
		CreatedAt: session.CreatedAt,
	}
	for _, issue := range session.Issues {
		c := copyIssue(issue)
		out.Issues = append(out.Issues, &c)
	}
	return out
}
