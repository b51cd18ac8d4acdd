package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the live estimation context for one project. At most one exists
// per project; it is created lazily on first use and stays dormant (with zero
// issues) rather than being destroyed.
type Session struct {
	ProjectID uuid.UUID `json:"project_id"`
	Issues    []*Issue  `json:"issues"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueByID returns the issue with the given ID, or nil. Sessions hold at most
// a handful of issues so a linear scan over the ordered slice is fine.
func (s *Session) IssueByID(id uuid.UUID) *Issue {
	for _, issue := range s.Issues {
		if issue.ID == id {
			return issue
		}
	}
	return nil
}
