package sprints

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/rfontan/pointly/go/internal/models"
	"github.com/rfontan/pointly/go/internal/poker"
	"github.com/rfontan/pointly/go/internal/sqlutil"
)

// Repository is the backlog/sprint side of the validation hand-off. Only
// CreateSprintTask is consumed by the poker gateway; sprint CRUD lives
// elsewhere in the product.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a sprints repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// taskMetadata is the JSONB blob stored alongside a task created from a poker
// session; it keeps the raw vote record for later reference.
type taskMetadata struct {
	Origin string        `json:"origin"`
	Votes  []models.Vote `json:"votes,omitempty"`
}

// CreateSprintTask inserts the task for a validated issue, reusing the issue
// ID as the task ID. When a sprint is given it must belong to the project;
// the check and the insert run in one transaction.
func (r *Repository) CreateSprintTask(ctx context.Context, req poker.CreateSprintTaskRequest) (uuid.UUID, error) {
	metadata, err := json.Marshal(taskMetadata{Origin: "planning_poker", Votes: req.Votes})
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal task metadata: %w", err)
	}

	err = sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if req.SprintID != nil {
			var ok bool
			err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM sprints WHERE id = $1 AND project_id = $2)`,
				*req.SprintID, req.ProjectID,
			).Scan(&ok)
			if err != nil {
				return fmt.Errorf("check sprint: %w", err)
			}
			if !ok {
				return poker.ErrNotFound
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO sprint_tasks
				(id, project_id, sprint_id, title, description, estimate, assigned_to, deadline, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
			req.TaskID,
			req.ProjectID,
			nullUUID(req.SprintID),
			req.Title,
			req.Description,
			req.Estimate,
			nullUUID(req.AssignedTo),
			sql.NullTime{Time: derefTime(req.Deadline), Valid: req.Deadline != nil},
			pqtype.NullRawMessage{RawMessage: metadata, Valid: len(metadata) > 0},
		)
		if err != nil {
			return fmt.Errorf("insert sprint task: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return req.TaskID, nil
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
