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

const accountColumns = `id, code, name, type_id, subtype_id, parent_id, enabled, description, created_at, updated_at`

func (s *Store) CountAccountTypes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_types`).Scan(&n); err != nil {
		return 0, mapErr(fmt.Errorf("counting account types: %w", err))
	}
	return n, nil
}

func (s *Store) SeedChart(ctx context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_types`).Scan(&n); err != nil {
			return fmt.Errorf("counting account types: %w", err)
		}
		if n > 0 {
			return store.ErrChartSeeded
		}
		for i, t := range types {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO account_types (id, name, position) VALUES (?, ?, ?)`,
				t.ID, string(t.Name), i)
			if err != nil {
				if isUnique(err) {
					return errs.Validation("account type %q already exists", t.Name)
				}
				return fmt.Errorf("inserting account type %s: %w", t.Name, err)
			}
		}
		for _, st := range subTypes {
			if err := insertSubType(ctx, tx, &st); err != nil {
				return err
			}
		}
		// Parents are inserted before children by the caller's ordering.
		for _, a := range accounts {
			if err := insertAccount(ctx, tx, &a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM account_types ORDER BY position`)
	if err != nil {
		return nil, mapErr(fmt.Errorf("listing account types: %w", err))
	}
	defer rows.Close()

	var result []model.AccountType
	for rows.Next() {
		var t model.AccountType
		var name string
		if err := rows.Scan(&t.ID, &name); err != nil {
			return nil, fmt.Errorf("scanning account type: %w", err)
		}
		t.Name = model.AccountTypeName(name)
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) GetAccountType(ctx context.Context, id string) (*model.AccountType, error) {
	var t model.AccountType
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM account_types WHERE id = ?`, id).Scan(&t.ID, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account type", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("getting account type: %w", err))
	}
	t.Name = model.AccountTypeName(name)
	return &t, nil
}

func insertSubType(ctx context.Context, q querier, st *model.AccountSubType) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO account_subtypes (id, name, type_id) VALUES (?, ?, ?)`,
		st.ID, st.Name, st.TypeID)
	switch {
	case isUnique(err):
		return errs.Validation("account sub-type %q already exists", st.ID)
	case isForeignKey(err):
		return errs.Validation("unknown account type %q", st.TypeID)
	case err != nil:
		return mapErr(fmt.Errorf("inserting account sub-type: %w", err))
	}
	return nil
}

func (s *Store) CreateAccountSubType(ctx context.Context, st *model.AccountSubType) error {
	return insertSubType(ctx, s.db, st)
}

func (s *Store) GetAccountSubType(ctx context.Context, id string) (*model.AccountSubType, error) {
	var st model.AccountSubType
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type_id FROM account_subtypes WHERE id = ?`, id).Scan(&st.ID, &st.Name, &st.TypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account sub-type", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("getting account sub-type: %w", err))
	}
	return &st, nil
}

func (s *Store) ListAccountSubTypes(ctx context.Context, typeID string) ([]model.AccountSubType, error) {
	query := `SELECT id, name, type_id FROM account_subtypes`
	var args []any
	if typeID != "" {
		query += ` WHERE type_id = ?`
		args = append(args, typeID)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("listing account sub-types: %w", err))
	}
	defer rows.Close()

	result := make([]model.AccountSubType, 0)
	for rows.Next() {
		var st model.AccountSubType
		if err := rows.Scan(&st.ID, &st.Name, &st.TypeID); err != nil {
			return nil, fmt.Errorf("scanning account sub-type: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (s *Store) DeleteAccountSubType(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var code string
		err := tx.QueryRowContext(ctx, `SELECT code FROM accounts WHERE subtype_id = ? LIMIT 1`, id).Scan(&code)
		if err == nil {
			return errs.Conflict("account sub-type", id, "referenced by account "+code)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking sub-type references: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM account_subtypes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting account sub-type: %w", err)
		}
		return affectedOne(res, "account sub-type", id)
	})
}

func insertAccount(ctx context.Context, q querier, a *model.Account) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Code, a.Name, a.TypeID, nullString(a.SubTypeID), nullString(a.ParentID),
		a.Enabled, a.Description, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	switch {
	case isUnique(err):
		return errs.Validation("account code %q already exists", a.Code)
	case isForeignKey(err):
		return errs.Validation("account %s references an unknown type, sub-type or parent", a.Code)
	case err != nil:
		return mapErr(fmt.Errorf("inserting account %s: %w", a.Code, err))
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	return insertAccount(ctx, s.db, a)
}

func (s *Store) UpdateAccount(ctx context.Context, a *model.Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET code = ?, name = ?, type_id = ?, subtype_id = ?, parent_id = ?,
			enabled = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		a.Code, a.Name, a.TypeID, nullString(a.SubTypeID), nullString(a.ParentID),
		a.Enabled, a.Description, formatTime(a.UpdatedAt), a.ID)
	switch {
	case isUnique(err):
		return errs.Validation("account code %q already exists", a.Code)
	case isForeignKey(err):
		return errs.Validation("account %s references an unknown type, sub-type or parent", a.Code)
	case err != nil:
		return mapErr(fmt.Errorf("updating account: %w", err))
	}
	return affectedOne(res, "account", a.ID)
}

func scanAccount(row scanner) (*model.Account, error) {
	var a model.Account
	var subType, parent sql.NullString
	var created, updated string
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.TypeID, &subType, &parent,
		&a.Enabled, &a.Description, &created, &updated); err != nil {
		return nil, err
	}
	a.SubTypeID = subType.String
	a.ParentID = parent.String

	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) getAccountWhere(ctx context.Context, where, arg, resource string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+` = ?`, arg)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound(resource, arg)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("getting account: %w", err))
	}
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccountWhere(ctx, "id", id, "account")
}

func (s *Store) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	return s.getAccountWhere(ctx, "code", code, "account code")
}

func (s *Store) ListAccounts(ctx context.Context, f model.AccountFilter) ([]model.Account, error) {
	var conds []string
	var args []any
	if f.TypeID != "" {
		conds = append(conds, "type_id = ?")
		args = append(args, f.TypeID)
	}
	if f.Enabled != nil {
		conds = append(conds, "enabled = ?")
		args = append(args, *f.Enabled)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("listing accounts: %w", err))
	}
	defer rows.Close()

	result := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("account", id)
		}
		if err != nil {
			return fmt.Errorf("checking account: %w", err)
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transaction_lines WHERE account_id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("counting account lines: %w", err)
		}
		if n > 0 {
			return errs.Conflict("account", id, "referenced by transaction lines")
		}

		var child string
		err = tx.QueryRowContext(ctx, `SELECT code FROM accounts WHERE parent_id = ? LIMIT 1`, id).Scan(&child)
		if err == nil {
			return errs.Conflict("account", id, "parent of account "+child)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking child accounts: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			if isForeignKey(err) {
				return errs.Conflict("account", id, "still referenced")
			}
			return fmt.Errorf("deleting account: %w", err)
		}
		return nil
	})
}
