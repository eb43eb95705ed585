package model

import "time"

// SessionStatus represents the lifecycle state of a harvest session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// SessionError records one item failure during a harvest run.
type SessionError struct {
	Opid       string    `json:"opid"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HarvestSession is the auditable record of one harvest run. CompletedAt is
// nil until the session is finalized, which happens exactly once.
type HarvestSession struct {
	ID          string         `json:"id"`
	Status      SessionStatus  `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	TotalFound  int            `json:"total_found"`
	Successful  int            `json:"successful"`
	Failed      int            `json:"failed"`
	Errors      []SessionError `json:"errors,omitempty"`
}

// Duration returns the session's elapsed time, using now for sessions that
// have not finalized yet.
func (s *HarvestSession) Duration() time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}
