package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rfontan/pointly/go/internal/poker"
)

// Repository answers the membership, ownership and display-name lookups the
// poker gateway needs. Project CRUD itself lives elsewhere in the product;
// this repository is read-only over those tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a projects repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsMember reports whether the user belongs to the project. The owner counts
// as a member. A missing project is ErrNotFound, not a failed membership
// check.
func (r *Repository) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	const query = `
		SELECT
			EXISTS (
				SELECT 1 FROM projects
				WHERE id = $1
			),
			EXISTS (
				SELECT 1 FROM project_members
				WHERE project_id = $1 AND user_id = $2
				UNION
				SELECT 1 FROM projects
				WHERE id = $1 AND owner_id = $2
			)`

	var exists, member bool
	if err := r.pool.QueryRow(ctx, query, projectID, userID).Scan(&exists, &member); err != nil {
		return false, fmt.Errorf("check project membership: %w", err)
	}
	if !exists {
		return false, poker.ErrNotFound
	}
	return member, nil
}

// IsOwner reports whether the user owns the project.
func (r *Repository) IsOwner(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	const query = `SELECT owner_id = $2 FROM projects WHERE id = $1`

	var owner bool
	err := r.pool.QueryRow(ctx, query, projectID, userID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, poker.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("check project ownership: %w", err)
	}
	return owner, nil
}

// GetUsername resolves a user's display name.
func (r *Repository) GetUsername(ctx context.Context, userID uuid.UUID) (string, error) {
	const query = `SELECT username FROM users WHERE id = $1`

	var username string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", poker.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get username: %w", err)
	}
	return username, nil
}
