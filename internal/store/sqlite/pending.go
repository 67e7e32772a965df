package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
)

const pendingColumns = `id, kind, source_id, payload, status, attempts, last_error, next_attempt_at, created_at, updated_at`

func (s *Store) EnqueuePending(ctx context.Context, p *model.PendingPosting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_postings (`+pendingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Kind), p.SourceID, p.Payload, string(p.Status), p.Attempts, p.LastError,
		formatTime(p.NextAttemptAt), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUnique(err) {
		return errs.Validation("pending posting %q already exists", p.ID)
	}
	if err != nil {
		return mapErr(fmt.Errorf("enqueuing pending posting: %w", err))
	}
	return nil
}

func (s *Store) UpdatePending(ctx context.Context, p *model.PendingPosting) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_postings SET status = ?, attempts = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?`,
		string(p.Status), p.Attempts, p.LastError, formatTime(p.NextAttemptAt), formatTime(time.Now()), p.ID)
	if err != nil {
		return mapErr(fmt.Errorf("updating pending posting: %w", err))
	}
	return affectedOne(res, "pending posting", p.ID)
}

func scanPending(row scanner) (*model.PendingPosting, error) {
	var p model.PendingPosting
	var kind, status, next, created, updated string
	if err := row.Scan(&p.ID, &kind, &p.SourceID, &p.Payload, &status, &p.Attempts, &p.LastError,
		&next, &created, &updated); err != nil {
		return nil, err
	}
	p.Kind = model.Reference(kind)
	p.Status = model.PendingStatus(status)

	var err error
	if p.NextAttemptAt, err = parseTime(next); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPending(ctx context.Context, id string) (*model.PendingPosting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_postings WHERE id = ?`, id)
	p, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("pending posting", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("getting pending posting: %w", err))
	}
	return p, nil
}

func (s *Store) ListPending(ctx context.Context, f model.PendingFilter) ([]model.PendingPosting, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.DueBefore.IsZero() {
		conds = append(conds, "next_attempt_at <= ?")
		args = append(args, formatTime(f.DueBefore))
	}

	query := `SELECT ` + pendingColumns + ` FROM pending_postings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY next_attempt_at`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("listing pending postings: %w", err))
	}
	defer rows.Close()

	result := make([]model.PendingPosting, 0)
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending posting: %w", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}
