// Package store persists opportunities and harvest sessions. Two backends
// implement the same interface: SQLite for the default local database and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// Store defines persistence for the harvest pipeline and the query engine.
type Store interface {
	// Opportunities. UpsertOpportunity is atomic per opid: an insert for a
	// new key, otherwise an update that refreshes every field and
	// last_updated while preserving the original scraped_at.
	UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error
	// GetOpportunity returns (nil, nil) when the opid is not stored.
	GetOpportunity(ctx context.Context, opid string) (*model.Opportunity, error)
	ListOpportunities(ctx context.Context) ([]model.Opportunity, error)
	QueryOpportunities(ctx context.Context, filter model.QueryFilter) ([]model.Opportunity, error)
	CountOpportunities(ctx context.Context) (int, error)

	// Sessions
	CreateSession(ctx context.Context, sess *model.HarvestSession) error
	UpdateSession(ctx context.Context, sess *model.HarvestSession) error
	GetSession(ctx context.Context, id string) (*model.HarvestSession, error)
	ListSessions(ctx context.Context, limit int) ([]model.HarvestSession, error)

	// Lifecycle. Ping verifies the backend is reachable before a run starts.
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses. pgxmock
// implements it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}
