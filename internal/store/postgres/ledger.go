package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

const lineColumns = `seq, id, account_id, reference, reference_id, reference_sub_id, date, debit, credit, description, posting_key, created_at`

func (s *Store) InsertGroup(ctx context.Context, g model.PostingGroup) error {
	return s.transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO posting_keys (key) VALUES ($1)`, g.Key); err != nil {
			if isUnique(err) {
				return store.ErrDuplicatePosting
			}
			return fmt.Errorf("tillbook/postgres: reserve posting key: %w", err)
		}
		if err := checkPostable(ctx, tx, g.Lines); err != nil {
			return err
		}

		if je := g.Journal; je != nil {
			if err := insertJournal(ctx, tx, je); err != nil {
				return err
			}
		}

		for _, l := range g.Lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO transaction_lines
					(id, account_id, reference, reference_id, reference_sub_id, date, debit, credit, description, posting_key, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				l.ID, l.AccountID, string(l.Reference), l.ReferenceID, l.ReferenceSubID,
				utc(l.Date), l.Debit.String(), l.Credit.String(), l.Description, g.Key, utc(l.CreatedAt))
			if isForeignKey(err) {
				return errs.Validation("unknown account %q", l.AccountID)
			}
			if err != nil {
				return fmt.Errorf("tillbook/postgres: insert line: %w", err)
			}
		}
		return nil
	})
}

// checkPostable share-locks the accounts of lines until commit, so an
// account cannot be disabled between this check and the line inserts.
func checkPostable(ctx context.Context, tx pgx.Tx, lines []model.TransactionLine) error {
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true

		var code string
		var enabled bool
		err := tx.QueryRow(ctx, `SELECT code, enabled FROM accounts WHERE id = $1 FOR SHARE`, l.AccountID).Scan(&code, &enabled)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return errs.Validation("unknown account %q", l.AccountID)
		case err != nil:
			return fmt.Errorf("tillbook/postgres: check account %s: %w", l.AccountID, err)
		case !enabled:
			return errs.Validation("account %s is disabled", code)
		}
	}
	return nil
}

func insertJournal(ctx context.Context, tx pgx.Tx, je *model.JournalEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journal_entries (id, number, date, reference, description, total_debit, total_credit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		je.ID, je.Number, utc(je.Date), je.Reference, je.Description,
		je.TotalDebit.String(), je.TotalCredit.String(), utc(je.CreatedAt))
	if isUnique(err) {
		return errs.Validation("journal number %q already exists", je.Number)
	}
	if err != nil {
		return fmt.Errorf("tillbook/postgres: insert journal entry: %w", err)
	}

	for i, it := range je.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO journal_items (id, entry_id, position, account_id, description, debit, credit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, je.ID, i, it.AccountID, it.Description, it.Debit.String(), it.Credit.String())
		if isForeignKey(err) {
			return errs.Validation("unknown account %q", it.AccountID)
		}
		if err != nil {
			return fmt.Errorf("tillbook/postgres: insert journal item: %w", err)
		}
	}
	return nil
}

func scanLine(row pgx.Row) (model.TransactionLine, error) {
	var l model.TransactionLine
	var ref, debit, credit string
	if err := row.Scan(&l.Seq, &l.ID, &l.AccountID, &ref, &l.ReferenceID, &l.ReferenceSubID,
		&l.Date, &debit, &credit, &l.Description, &l.PostingKey, &l.CreatedAt); err != nil {
		return l, err
	}
	l.Reference = model.Reference(ref)
	l.Date = l.Date.UTC()
	l.CreatedAt = l.CreatedAt.UTC()

	var err error
	if l.Debit, err = parseAmount("debit", debit); err != nil {
		return l, err
	}
	if l.Credit, err = parseAmount("credit", credit); err != nil {
		return l, err
	}
	return l, nil
}

func (s *Store) QueryLines(ctx context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != "" {
		add("account_id = $%d", f.AccountID)
	}
	if f.Reference != "" {
		add("reference = $%d", string(f.Reference))
	}
	if f.ReferenceID != "" {
		add("reference_id = $%d", f.ReferenceID)
	}
	if !f.From.IsZero() {
		add("date >= $%d", utc(f.From))
	}
	if !f.Before.IsZero() {
		add("date < $%d", utc(f.Before))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+lineColumns+` FROM transaction_lines`+where(conds)+` ORDER BY date DESC, seq ASC`, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: query lines: %w", err))
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TransactionLine, error) {
		return scanLine(row)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	if result == nil {
		result = []model.TransactionLine{}
	}
	return result, nil
}

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`, name).Scan(&n)
	if err != nil {
		return 0, mapErr(fmt.Errorf("tillbook/postgres: advance sequence %s: %w", name, err))
	}
	return n, nil
}

const entryColumns = `id, number, date, reference, description, total_debit, total_credit, created_at`

func scanEntry(row pgx.Row) (model.JournalEntry, error) {
	var je model.JournalEntry
	var debit, credit string
	if err := row.Scan(&je.ID, &je.Number, &je.Date, &je.Reference, &je.Description,
		&debit, &credit, &je.CreatedAt); err != nil {
		return je, err
	}
	je.Date = je.Date.UTC()
	je.CreatedAt = je.CreatedAt.UTC()

	var err error
	if je.TotalDebit, err = parseAmount("total_debit", debit); err != nil {
		return je, err
	}
	if je.TotalCredit, err = parseAmount("total_credit", credit); err != nil {
		return je, err
	}
	return je, nil
}

func loadItems(ctx context.Context, q querier, je *model.JournalEntry) error {
	rows, err := q.Query(ctx, `
		SELECT id, entry_id, account_id, description, debit, credit
		FROM journal_items WHERE entry_id = $1 ORDER BY position`, je.ID)
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/postgres: load journal items: %w", err))
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.JournalItem, error) {
		var it model.JournalItem
		var debit, credit string
		if err := row.Scan(&it.ID, &it.EntryID, &it.AccountID, &it.Description, &debit, &credit); err != nil {
			return it, err
		}
		var err error
		if it.Debit, err = parseAmount("debit", debit); err != nil {
			return it, err
		}
		it.Credit, err = parseAmount("credit", credit)
		return it, err
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.JournalItem{}
	}
	je.Items = items
	return nil
}

func (s *Store) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	je, err := scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("journal entry", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: get journal entry: %w", err))
	}
	if err := loadItems(ctx, s.pool, &je); err != nil {
		return nil, err
	}
	return &je, nil
}

func (s *Store) ListJournalEntries(ctx context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	from, before := r.LineBounds()
	var conds []string
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !before.IsZero() {
		args = append(args, before)
		conds = append(conds, fmt.Sprintf("date < $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM journal_entries`+where(conds)+` ORDER BY LENGTH(number), number`, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: list journal entries: %w", err))
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.JournalEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, err
	}
	for i := range result {
		if err := loadItems(ctx, s.pool, &result[i]); err != nil {
			return nil, err
		}
	}
	if result == nil {
		result = []model.JournalEntry{}
	}
	return result, nil
}

func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("tillbook/postgres: delete journal entry: %w", err)
		}
		if err := notFoundIfNone(tag, "journal entry", id); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			DELETE FROM transaction_lines WHERE reference = $1 AND reference_id = $2
			RETURNING posting_key`, string(model.RefJournalEntry), id)
		if err != nil {
			return fmt.Errorf("tillbook/postgres: delete journal lines: %w", err)
		}
		keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("tillbook/postgres: delete journal lines: %w", err)
		}
		if len(keys) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM posting_keys WHERE key = ANY($1)`, keys); err != nil {
				return fmt.Errorf("tillbook/postgres: release posting keys: %w", err)
			}
		}
		return nil
	})
}

// ==================== Outbox ====================

const pendingColumns = `id, kind, source_id, payload, status, attempts, last_error, next_attempt_at, created_at, updated_at`

func (s *Store) EnqueuePending(ctx context.Context, p *model.PendingPosting) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_postings (`+pendingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, string(p.Kind), p.SourceID, p.Payload, string(p.Status), p.Attempts, p.LastError,
		utc(p.NextAttemptAt), utc(p.CreatedAt), utc(p.UpdatedAt))
	if isUnique(err) {
		return errs.Validation("pending posting %q already exists", p.ID)
	}
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/postgres: enqueue pending posting: %w", err))
	}
	return nil
}

func (s *Store) UpdatePending(ctx context.Context, p *model.PendingPosting) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pending_postings SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4, updated_at = $5
		WHERE id = $6`,
		string(p.Status), p.Attempts, p.LastError, utc(p.NextAttemptAt), time.Now().UTC(), p.ID)
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/postgres: update pending posting: %w", err))
	}
	return notFoundIfNone(tag, "pending posting", p.ID)
}

func scanPending(row pgx.Row) (model.PendingPosting, error) {
	var p model.PendingPosting
	var kind, status string
	err := row.Scan(&p.ID, &kind, &p.SourceID, &p.Payload, &status, &p.Attempts, &p.LastError,
		&p.NextAttemptAt, &p.CreatedAt, &p.UpdatedAt)
	p.Kind = model.Reference(kind)
	p.Status = model.PendingStatus(status)
	p.NextAttemptAt = p.NextAttemptAt.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) GetPending(ctx context.Context, id string) (*model.PendingPosting, error) {
	p, err := scanPending(s.pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_postings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("pending posting", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: get pending posting: %w", err))
	}
	return &p, nil
}

func (s *Store) ListPending(ctx context.Context, f model.PendingFilter) ([]model.PendingPosting, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.DueBefore.IsZero() {
		args = append(args, utc(f.DueBefore))
		conds = append(conds, fmt.Sprintf("next_attempt_at <= $%d", len(args)))
	}
	query := `SELECT ` + pendingColumns + ` FROM pending_postings` + where(conds) + ` ORDER BY next_attempt_at`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: list pending postings: %w", err))
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PendingPosting, error) {
		return scanPending(row)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []model.PendingPosting{}
	}
	return result, nil
}
