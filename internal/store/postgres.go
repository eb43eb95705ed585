package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgUpsertOpportunity = `INSERT INTO opportunities (opid, title, url, description, accommodation_food_transport,
	participant_profile, activity_dates, activity_location, looking_for_participants_from,
	activity_topics, application_deadline, participant_countries, topics_list, scraped_at, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (opid) DO UPDATE SET
	title = excluded.title,
	url = excluded.url,
	description = excluded.description,
	accommodation_food_transport = excluded.accommodation_food_transport,
	participant_profile = excluded.participant_profile,
	activity_dates = excluded.activity_dates,
	activity_location = excluded.activity_location,
	looking_for_participants_from = excluded.looking_for_participants_from,
	activity_topics = excluded.activity_topics,
	application_deadline = excluded.application_deadline,
	participant_countries = excluded.participant_countries,
	topics_list = excluded.topics_list,
	last_updated = excluded.last_updated`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"upsert_opportunity":  pgUpsertOpportunity,
	"get_opportunity":     `SELECT ` + opportunityColumns + ` FROM opportunities WHERE opid = $1`,
	"count_opportunities": `SELECT COUNT(*) FROM opportunities`,
	"create_session": `INSERT INTO sessions (id, status, started_at, completed_at, total_found, successful, failed, errors)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"update_session": `UPDATE sessions SET status = $1, completed_at = $2, total_found = $3, successful = $4, failed = $5, errors = $6
WHERE id = $7`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS opportunities (
	opid                          TEXT PRIMARY KEY,
	title                         TEXT NOT NULL,
	url                           TEXT NOT NULL,
	description                   TEXT NOT NULL DEFAULT '',
	accommodation_food_transport  TEXT NOT NULL DEFAULT '',
	participant_profile           TEXT NOT NULL DEFAULT '',
	activity_dates                TEXT NOT NULL DEFAULT '',
	activity_location             TEXT NOT NULL DEFAULT '',
	looking_for_participants_from TEXT NOT NULL DEFAULT '',
	activity_topics               TEXT NOT NULL DEFAULT '',
	application_deadline          TEXT NOT NULL DEFAULT '',
	participant_countries         JSONB NOT NULL DEFAULT '[]',
	topics_list                   JSONB NOT NULL DEFAULT '[]',
	scraped_at                    TIMESTAMPTZ NOT NULL,
	last_updated                  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	total_found  INTEGER NOT NULL DEFAULT 0,
	successful   INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	errors       JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_opportunities_last_updated ON opportunities(last_updated DESC);
CREATE INDEX IF NOT EXISTS idx_opportunities_location ON opportunities(activity_location);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	if err := opp.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, pgUpsertOpportunity,
		opp.Opid, opp.Title, opp.URL, opp.Description, opp.Accommodation,
		opp.ParticipantProfile, opp.ActivityDates, opp.ActivityLocation, opp.ParticipantsFrom,
		opp.ActivityTopics, opp.ApplicationDeadline, marshalList(opp.ParticipantCountries),
		marshalList(opp.TopicsList), now, now,
	)
	return eris.Wrapf(err, "postgres: upsert opportunity %s", opp.Opid)
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, opid string) (*model.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE opid = $1`, opid)

	opp, err := scanPgOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get opportunity %s", opid)
	}
	return opp, nil
}

func (s *PostgresStore) ListOpportunities(ctx context.Context) ([]model.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities ORDER BY last_updated DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()
	return collectPgOpportunities(rows)
}

func (s *PostgresStore) QueryOpportunities(ctx context.Context, filter model.QueryFilter) ([]model.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE 1=1`
	var args []any

	group := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		conds := make([]string, len(values))
		for i, v := range values {
			args = append(args, "%"+v+"%")
			conds[i] = fmt.Sprintf("%s ILIKE $%d", column, len(args))
		}
		query += " AND (" + strings.Join(conds, " OR ") + ")"
	}
	group("looking_for_participants_from", filter.Countries)
	group("activity_topics", filter.Topics)
	group("activity_location", filter.Locations)
	group("title", filter.TitleKeywords)
	group("description", filter.DescriptionKeywords)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY last_updated DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query opportunities")
	}
	defer rows.Close()
	return collectPgOpportunities(rows)
}

func (s *PostgresStore) CountOpportunities(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count opportunities")
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.HarvestSession) error {
	errorsJSON, err := json.Marshal(sess.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session errors")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, status, started_at, completed_at, total_found, successful, failed, errors)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, string(sess.Status), sess.StartedAt, sess.CompletedAt,
		sess.TotalFound, sess.Successful, sess.Failed, errorsJSON,
	)
	return eris.Wrapf(err, "postgres: insert session %s", sess.ID)
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.HarvestSession) error {
	errorsJSON, err := json.Marshal(sess.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session errors")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, completed_at = $2, total_found = $3, successful = $4, failed = $5, errors = $6
WHERE id = $7`,
		string(sess.Status), sess.CompletedAt, sess.TotalFound, sess.Successful,
		sess.Failed, errorsJSON, sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %s", sess.ID)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.HarvestSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, started_at, completed_at, total_found, successful, failed, errors
FROM sessions WHERE id = $1`, id)

	sess, err := scanPgSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.HarvestSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, total_found, successful, failed, errors
FROM sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.HarvestSession
	for rows.Next() {
		sess, err := scanPgSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func scanPgOpportunity(row pgx.Row) (*model.Opportunity, error) {
	var o model.Opportunity
	var countriesJSON, topicsJSON []byte

	err := row.Scan(
		&o.Opid, &o.Title, &o.URL, &o.Description, &o.Accommodation,
		&o.ParticipantProfile, &o.ActivityDates, &o.ActivityLocation, &o.ParticipantsFrom,
		&o.ActivityTopics, &o.ApplicationDeadline, &countriesJSON, &topicsJSON,
		&o.ScrapedAt, &o.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(countriesJSON, &o.ParticipantCountries); err != nil {
		return nil, eris.Wrap(err, "unmarshal participant countries")
	}
	if err := json.Unmarshal(topicsJSON, &o.TopicsList); err != nil {
		return nil, eris.Wrap(err, "unmarshal topics list")
	}
	return &o, nil
}

func collectPgOpportunities(rows pgx.Rows) ([]model.Opportunity, error) {
	var opps []model.Opportunity
	for rows.Next() {
		o, err := scanPgOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		opps = append(opps, *o)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: iterate opportunities")
}

func scanPgSession(row pgx.Row) (*model.HarvestSession, error) {
	var sess model.HarvestSession
	var status string
	var completedAt *time.Time
	var errorsJSON []byte

	err := row.Scan(&sess.ID, &status, &sess.StartedAt, &completedAt,
		&sess.TotalFound, &sess.Successful, &sess.Failed, &errorsJSON)
	if err != nil {
		return nil, err
	}

	sess.Status = model.SessionStatus(status)
	sess.CompletedAt = completedAt
	if err := json.Unmarshal(errorsJSON, &sess.Errors); err != nil {
		return nil, eris.Wrap(err, "unmarshal session errors")
	}
	return &sess, nil
}
