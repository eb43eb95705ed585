package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	participant_countries         TEXT NOT NULL DEFAULT '[]',
	topics_list                   TEXT NOT NULL DEFAULT '[]',
	scraped_at                    DATETIME NOT NULL,
	last_updated                  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	total_found  INTEGER NOT NULL DEFAULT 0,
	successful   INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	errors       TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_opportunities_last_updated ON opportunities(last_updated);
CREATE INDEX IF NOT EXISTS idx_opportunities_location ON opportunities(activity_location);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const opportunityColumns = `opid, title, url, description, accommodation_food_transport,
	participant_profile, activity_dates, activity_location, looking_for_participants_from,
	activity_topics, application_deadline, participant_countries, topics_list,
	scraped_at, last_updated`

func (s *SQLiteStore) UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	if err := opp.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities (`+opportunityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(opid) DO UPDATE SET
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
			last_updated = excluded.last_updated`,
		opp.Opid, opp.Title, opp.URL, opp.Description, opp.Accommodation,
		opp.ParticipantProfile, opp.ActivityDates, opp.ActivityLocation, opp.ParticipantsFrom,
		opp.ActivityTopics, opp.ApplicationDeadline, marshalList(opp.ParticipantCountries),
		marshalList(opp.TopicsList), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert opportunity %s", opp.Opid)
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, opid string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE opid = ?`, opid)
	opp, err := scanOpportunity(row)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get opportunity %s", opid)
	}
	return opp, nil
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities ORDER BY last_updated DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opportunities")
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (s *SQLiteStore) QueryOpportunities(ctx context.Context, filter model.QueryFilter) ([]model.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE 1=1`
	var args []any

	// Values within a criterion are alternatives; criteria all have to hold.
	group := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		conds := make([]string, len(values))
		for i, v := range values {
			conds[i] = "lower(" + column + ") LIKE ?"
			args = append(args, "%"+strings.ToLower(v)+"%")
		}
		query += " AND (" + strings.Join(conds, " OR ") + ")"
	}
	group("looking_for_participants_from", filter.Countries)
	group("activity_topics", filter.Topics)
	group("activity_location", filter.Locations)
	group("title", filter.TitleKeywords)
	group("description", filter.DescriptionKeywords)

	query += ` ORDER BY last_updated DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query opportunities")
	}
	defer rows.Close()
	return collectOpportunities(rows)
}

func (s *SQLiteStore) CountOpportunities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count opportunities")
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.HarvestSession) error {
	errorsJSON, err := json.Marshal(sess.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session errors")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, status, started_at, completed_at, total_found, successful, failed, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Status), sess.StartedAt, sess.CompletedAt,
		sess.TotalFound, sess.Successful, sess.Failed, string(errorsJSON),
	)
	return eris.Wrapf(err, "sqlite: insert session %s", sess.ID)
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.HarvestSession) error {
	errorsJSON, err := json.Marshal(sess.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session errors")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, completed_at = ?, total_found = ?, successful = ?, failed = ?, errors = ?
		 WHERE id = ?`,
		string(sess.Status), sess.CompletedAt, sess.TotalFound, sess.Successful,
		sess.Failed, string(errorsJSON), sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", sess.ID)
	}
	return checkRowsAffected(res, "session", sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.HarvestSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, completed_at, total_found, successful, failed, errors
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == errNotFound {
		return nil, eris.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.HarvestSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, total_found, successful, failed, errors
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.HarvestSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

// helpers

var errNotFound = eris.New("not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// marshalList keeps empty sets as [] rather than null in storage.
func marshalList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func scanOpportunity(row scannable) (*model.Opportunity, error) {
	var o model.Opportunity
	var countriesJSON, topicsJSON string

	err := row.Scan(
		&o.Opid, &o.Title, &o.URL, &o.Description, &o.Accommodation,
		&o.ParticipantProfile, &o.ActivityDates, &o.ActivityLocation, &o.ParticipantsFrom,
		&o.ActivityTopics, &o.ApplicationDeadline, &countriesJSON, &topicsJSON,
		&o.ScrapedAt, &o.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan opportunity")
	}

	if err := json.Unmarshal([]byte(countriesJSON), &o.ParticipantCountries); err != nil {
		return nil, eris.Wrap(err, "unmarshal participant countries")
	}
	if err := json.Unmarshal([]byte(topicsJSON), &o.TopicsList); err != nil {
		return nil, eris.Wrap(err, "unmarshal topics list")
	}
	return &o, nil
}

func collectOpportunities(rows *sql.Rows) ([]model.Opportunity, error) {
	var opps []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		opps = append(opps, *o)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: iterate opportunities")
}

func scanSession(row scannable) (*model.HarvestSession, error) {
	var sess model.HarvestSession
	var status string
	var completedAt sql.NullTime
	var errorsJSON string

	err := row.Scan(&sess.ID, &status, &sess.StartedAt, &completedAt,
		&sess.TotalFound, &sess.Successful, &sess.Failed, &errorsJSON)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan session")
	}

	sess.Status = model.SessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(errorsJSON), &sess.Errors); err != nil {
		return nil, eris.Wrap(err, "unmarshal session errors")
	}
	return &sess, nil
}
