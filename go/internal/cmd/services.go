package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/rfontan/pointly/go/internal/poker"
	"github.com/rfontan/pointly/go/internal/poker/gateway"
	"github.com/rfontan/pointly/go/internal/projects"
	"github.com/rfontan/pointly/go/internal/sprints"
)

type Services struct {
	Poker   *poker.Service
	Gateway *gateway.Service
}

func setupServices(pool *pgxpool.Pool, database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer

	projectsRepo := projects.NewRepository(pool)
	sprintsRepo := sprints.NewRepository(database)

	store := poker.NewSessionStore(clockwork.NewRealClock())

	gatewayService, err := gateway.NewService(config.gatewayConfig(), memberAuthorizer{projects: projectsRepo})
	if err != nil {
		return nil, fmt.Errorf("setup gateway: %w", err)
	}

	publisher, err := gatewayService.Publisher()
	if err != nil {
		return nil, fmt.Errorf("setup publisher: %w", err)
	}

	pokerApp := poker.NewApp(store, projectsRepo, sprintsRepo, publisher)

	return &Services{
		Poker:   poker.NewService(pokerApp),
		Gateway: gatewayService,
	}, nil
}

// memberAuthorizer lets the gateway check room access straight against the
// projects repository.
type memberAuthorizer struct {
	projects poker.ProjectRepository
}

func (a memberAuthorizer) Authorize(ctx context.Context, projectID, userID uuid.UUID) error {
	ok, err := a.projects.IsMember(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !ok {
		return poker.ErrForbidden
	}
	return nil
}
