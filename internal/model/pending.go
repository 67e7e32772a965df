package model

import "time"

// PendingStatus is the lifecycle state of an outbox record.
type PendingStatus string

const (
	PendingStatusPending PendingStatus = "pending"
	PendingStatusPosted  PendingStatus = "posted"
	PendingStatusFailed  PendingStatus = "failed"
)

// PendingPosting is a durable record of a domain event whose ledger posting
// has not succeeded yet.
type PendingPosting struct {
	ID            string
	Kind          Reference
	SourceID      string
	Payload       []byte // JSON-encoded event
	Status        PendingStatus
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PendingFilter narrows ListPending. Zero values match everything.
type PendingFilter struct {
	Status    PendingStatus
	DueBefore time.Time // NextAttemptAt <= DueBefore
	Limit     int
}

// Match reports whether p satisfies the filter (Limit is applied by the caller).
func (f PendingFilter) Match(p PendingPosting) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.DueBefore.IsZero() && p.NextAttemptAt.After(f.DueBefore) {
		return false
	}
	return true
}
