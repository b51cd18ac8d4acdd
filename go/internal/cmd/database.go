package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// setupPool opens the pgx pool used by the projects repository.
func setupPool(ctx context.Context, config *Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, config.databaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", config.Database.Host).
		Str("database", config.Database.Name).
		Msg("pgx pool connected")
	return pool, nil
}

// setupDatabase opens the database/sql handle used by the sprints repository.
func setupDatabase(config *Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", config.databaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", config.Database.Host).
		Str("database", config.Database.Name).
		Msg("database connected")
	return database, nil
}
