package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

const lineColumns = `seq, id, account_id, reference, reference_id, reference_sub_id, date, debit, credit, description, posting_key, created_at`

func (s *Store) InsertGroup(ctx context.Context, g model.PostingGroup) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO posting_keys (key) VALUES (?)`, g.Key); err != nil {
			if isUnique(err) {
				return store.ErrDuplicatePosting
			}
			return mapErr(fmt.Errorf("reserving posting key: %w", err))
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
			_, err := tx.ExecContext(ctx, `
				INSERT INTO transaction_lines
					(id, account_id, reference, reference_id, reference_sub_id, date, debit, credit, description, posting_key, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				l.ID, l.AccountID, string(l.Reference), l.ReferenceID, l.ReferenceSubID,
				formatTime(l.Date), l.Debit.String(), l.Credit.String(), l.Description, g.Key, formatTime(l.CreatedAt))
			switch {
			case isForeignKey(err):
				return errs.Validation("unknown account %q", l.AccountID)
			case err != nil:
				return mapErr(fmt.Errorf("inserting line: %w", err))
			}
		}
		return nil
	})
}

// checkPostable re-reads the accounts of lines inside the write transaction,
// which already holds the database write lock, so an account disabled after
// validation cannot receive lines.
func checkPostable(ctx context.Context, tx *sql.Tx, lines []model.TransactionLine) error {
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true

		var code string
		var enabled bool
		err := tx.QueryRowContext(ctx, `SELECT code, enabled FROM accounts WHERE id = ?`, l.AccountID).Scan(&code, &enabled)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return errs.Validation("unknown account %q", l.AccountID)
		case err != nil:
			return mapErr(fmt.Errorf("checking account %s: %w", l.AccountID, err))
		case !enabled:
			return errs.Validation("account %s is disabled", code)
		}
	}
	return nil
}

func insertJournal(ctx context.Context, tx *sql.Tx, je *model.JournalEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, number, date, reference, description, total_debit, total_credit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		je.ID, je.Number, formatTime(je.Date), je.Reference, je.Description,
		je.TotalDebit.String(), je.TotalCredit.String(), formatTime(je.CreatedAt))
	if isUnique(err) {
		return errs.Validation("journal number %q already exists", je.Number)
	}
	if err != nil {
		return mapErr(fmt.Errorf("inserting journal entry: %w", err))
	}

	for i, it := range je.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO journal_items (id, entry_id, position, account_id, description, debit, credit)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.ID, je.ID, i, it.AccountID, it.Description, it.Debit.String(), it.Credit.String())
		switch {
		case isForeignKey(err):
			return errs.Validation("unknown account %q", it.AccountID)
		case err != nil:
			return mapErr(fmt.Errorf("inserting journal item: %w", err))
		}
	}
	return nil
}

func scanLine(row scanner) (model.TransactionLine, error) {
	var l model.TransactionLine
	var ref, date, created string
	err := row.Scan(&l.Seq, &l.ID, &l.AccountID, &ref, &l.ReferenceID, &l.ReferenceSubID,
		&date, &l.Debit, &l.Credit, &l.Description, &l.PostingKey, &created)
	if err != nil {
		return l, err
	}
	l.Reference = model.Reference(ref)
	if l.Date, err = parseTime(date); err != nil {
		return l, err
	}
	if l.CreatedAt, err = parseTime(created); err != nil {
		return l, err
	}
	return l, nil
}

func (s *Store) QueryLines(ctx context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	var conds []string
	var args []any
	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Reference != "" {
		conds = append(conds, "reference = ?")
		args = append(args, string(f.Reference))
	}
	if f.ReferenceID != "" {
		conds = append(conds, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.Before.IsZero() {
		conds = append(conds, "date < ?")
		args = append(args, formatTime(f.Before))
	}

	query := `SELECT ` + lineColumns + ` FROM transaction_lines`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("querying lines: %w", err))
	}
	defer rows.Close()

	result := make([]model.TransactionLine, 0)
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&n)
	if err != nil {
		return 0, mapErr(fmt.Errorf("advancing sequence %s: %w", name, err))
	}
	return n, nil
}

func scanEntry(row scanner) (*model.JournalEntry, error) {
	var je model.JournalEntry
	var date, created string
	if err := row.Scan(&je.ID, &je.Number, &date, &je.Reference, &je.Description,
		&je.TotalDebit, &je.TotalCredit, &created); err != nil {
		return nil, err
	}
	var err error
	if je.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if je.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &je, nil
}

func loadItems(ctx context.Context, q querier, je *model.JournalEntry) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, account_id, description, debit, credit
		FROM journal_items WHERE entry_id = ? ORDER BY position`, je.ID)
	if err != nil {
		return mapErr(fmt.Errorf("loading journal items: %w", err))
	}
	defer rows.Close()

	je.Items = make([]model.JournalItem, 0)
	for rows.Next() {
		var it model.JournalItem
		if err := rows.Scan(&it.ID, &it.EntryID, &it.AccountID, &it.Description, &it.Debit, &it.Credit); err != nil {
			return fmt.Errorf("scanning journal item: %w", err)
		}
		je.Items = append(je.Items, it)
	}
	return rows.Err()
}

const entryColumns = `id, number, date, reference, description, total_debit, total_credit, created_at`

func (s *Store) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id)
	je, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("journal entry", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("getting journal entry: %w", err))
	}
	if err := loadItems(ctx, s.db, je); err != nil {
		return nil, err
	}
	return je, nil
}

func (s *Store) ListJournalEntries(ctx context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	from, before := r.LineBounds()
	var conds []string
	var args []any
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, formatTime(from))
	}
	if !before.IsZero() {
		conds = append(conds, "date < ?")
		args = append(args, formatTime(before))
	}

	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY LENGTH(number), number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("listing journal entries: %w", err))
	}
	var result []model.JournalEntry
	for rows.Next() {
		je, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		result = append(result, *je)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Items are loaded after the header cursor closes; the pool holds one
	// connection.
	for i := range result {
		if err := loadItems(ctx, s.db, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM journal_entries WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("journal entry", id)
		}
		if err != nil {
			return fmt.Errorf("checking journal entry: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT posting_key FROM transaction_lines
			WHERE reference = ? AND reference_id = ?`, string(model.RefJournalEntry), id)
		if err != nil {
			return fmt.Errorf("finding posting keys: %w", err)
		}
		var keys []string
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return err
			}
			keys = append(keys, k)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM transaction_lines WHERE reference = ? AND reference_id = ?`,
			string(model.RefJournalEntry), id); err != nil {
			return fmt.Errorf("deleting journal lines: %w", err)
		}
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM posting_keys WHERE key = ?`, k); err != nil {
				return fmt.Errorf("releasing posting key: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM journal_items WHERE entry_id = ?`, id); err != nil {
			return fmt.Errorf("deleting journal items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting journal entry: %w", err)
		}
		return nil
	})
}
