package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

const accountColumns = `id, code, name, type_id, subtype_id, parent_id, enabled, description, created_at, updated_at`

func (s *Store) CountAccountTypes(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM account_types`).Scan(&n); err != nil {
		return 0, mapErr(fmt.Errorf("tillbook/postgres: count account types: %w", err))
	}
	return n, nil
}

func (s *Store) SeedChart(ctx context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error {
	return s.transaction(ctx, func(tx pgx.Tx) error {
		// Concurrent seeders queue here; the loser then sees the winner's rows.
		if _, err := tx.Exec(ctx, `LOCK TABLE account_types IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("tillbook/postgres: lock account types: %w", err)
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM account_types`).Scan(&n); err != nil {
			return fmt.Errorf("tillbook/postgres: count account types: %w", err)
		}
		if n > 0 {
			return store.ErrChartSeeded
		}
		for i, t := range types {
			_, err := tx.Exec(ctx,
				`INSERT INTO account_types (id, name, position) VALUES ($1, $2, $3)`,
				t.ID, string(t.Name), i)
			if isUnique(err) {
				return errs.Validation("account type %q already exists", t.Name)
			}
			if err != nil {
				return fmt.Errorf("tillbook/postgres: insert account type: %w", err)
			}
		}
		for _, st := range subTypes {
			if err := insertSubType(ctx, tx, &st); err != nil {
				return err
			}
		}
		for _, a := range accounts {
			if err := insertAccount(ctx, tx, &a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM account_types ORDER BY position`)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: list account types: %w", err))
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AccountType, error) {
		var t model.AccountType
		var name string
		err := row.Scan(&t.ID, &name)
		t.Name = model.AccountTypeName(name)
		return t, err
	})
}

func (s *Store) GetAccountType(ctx context.Context, id string) (*model.AccountType, error) {
	var t model.AccountType
	var name string
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM account_types WHERE id = $1`, id).Scan(&t.ID, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("account type", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: get account type: %w", err))
	}
	t.Name = model.AccountTypeName(name)
	return &t, nil
}

func insertSubType(ctx context.Context, q querier, st *model.AccountSubType) error {
	_, err := q.Exec(ctx,
		`INSERT INTO account_subtypes (id, name, type_id) VALUES ($1, $2, $3)`,
		st.ID, st.Name, st.TypeID)
	switch {
	case isUnique(err):
		return errs.Validation("account sub-type %q already exists", st.ID)
	case isForeignKey(err):
		return errs.Validation("unknown account type %q", st.TypeID)
	case err != nil:
		return mapErr(fmt.Errorf("tillbook/postgres: insert account sub-type: %w", err))
	}
	return nil
}

func (s *Store) CreateAccountSubType(ctx context.Context, st *model.AccountSubType) error {
	return insertSubType(ctx, s.pool, st)
}

func (s *Store) GetAccountSubType(ctx context.Context, id string) (*model.AccountSubType, error) {
	var st model.AccountSubType
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type_id FROM account_subtypes WHERE id = $1`, id).Scan(&st.ID, &st.Name, &st.TypeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("account sub-type", id)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: get account sub-type: %w", err))
	}
	return &st, nil
}

func (s *Store) ListAccountSubTypes(ctx context.Context, typeID string) ([]model.AccountSubType, error) {
	query := `SELECT id, name, type_id FROM account_subtypes`
	var args []any
	if typeID != "" {
		query += ` WHERE type_id = $1`
		args = append(args, typeID)
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY name`, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: list account sub-types: %w", err))
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AccountSubType, error) {
		var st model.AccountSubType
		err := row.Scan(&st.ID, &st.Name, &st.TypeID)
		return st, err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []model.AccountSubType{}
	}
	return result, nil
}

func (s *Store) DeleteAccountSubType(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx pgx.Tx) error {
		var code string
		err := tx.QueryRow(ctx, `SELECT code FROM accounts WHERE subtype_id = $1 LIMIT 1`, id).Scan(&code)
		if err == nil {
			return errs.Conflict("account sub-type", id, "referenced by account "+code)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("tillbook/postgres: check sub-type references: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM account_subtypes WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("tillbook/postgres: delete account sub-type: %w", err)
		}
		return notFoundIfNone(tag, "account sub-type", id)
	})
}

func insertAccount(ctx context.Context, q querier, a *model.Account) error {
	_, err := q.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Code, a.Name, a.TypeID, nullable(a.SubTypeID), nullable(a.ParentID),
		a.Enabled, a.Description, utc(a.CreatedAt), utc(a.UpdatedAt))
	switch {
	case isUnique(err):
		return errs.Validation("account code %q already exists", a.Code)
	case isForeignKey(err):
		return errs.Validation("account %s references an unknown type, sub-type or parent", a.Code)
	case err != nil:
		return mapErr(fmt.Errorf("tillbook/postgres: insert account %s: %w", a.Code, err))
	}
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	return insertAccount(ctx, s.pool, a)
}

func (s *Store) UpdateAccount(ctx context.Context, a *model.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET code = $1, name = $2, type_id = $3, subtype_id = $4, parent_id = $5,
			enabled = $6, description = $7, updated_at = $8
		WHERE id = $9`,
		a.Code, a.Name, a.TypeID, nullable(a.SubTypeID), nullable(a.ParentID),
		a.Enabled, a.Description, utc(a.UpdatedAt), a.ID)
	switch {
	case isUnique(err):
		return errs.Validation("account code %q already exists", a.Code)
	case isForeignKey(err):
		return errs.Validation("account %s references an unknown type, sub-type or parent", a.Code)
	case err != nil:
		return mapErr(fmt.Errorf("tillbook/postgres: update account: %w", err))
	}
	return notFoundIfNone(tag, "account", a.ID)
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var subType, parent *string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.TypeID, &subType, &parent,
		&a.Enabled, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	a.SubTypeID = deref(subType)
	a.ParentID = deref(parent)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, err
}

func (s *Store) getAccountWhere(ctx context.Context, column, arg, resource string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, arg)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound(resource, arg)
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: get account: %w", err))
	}
	return &a, nil
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
		args = append(args, f.TypeID)
		conds = append(conds, fmt.Sprintf("type_id = $%d", len(args)))
	}
	if f.Enabled != nil {
		args = append(args, *f.Enabled)
		conds = append(conds, fmt.Sprintf("enabled = $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts`+where(conds)+` ORDER BY code`, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/postgres: list accounts: %w", err))
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Account, error) {
		return scanAccount(row)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []model.Account{}
	}
	return result, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.transaction(ctx, func(tx pgx.Tx) error {
		// Lock the row so a concurrent posting cannot reference it mid-check.
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("account", id)
		}
		if err != nil {
			return fmt.Errorf("tillbook/postgres: lock account: %w", err)
		}

		var used bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM transaction_lines WHERE account_id = $1)`, id).Scan(&used); err != nil {
			return fmt.Errorf("tillbook/postgres: check account lines: %w", err)
		}
		if used {
			return errs.Conflict("account", id, "referenced by transaction lines")
		}

		var child string
		err = tx.QueryRow(ctx, `SELECT code FROM accounts WHERE parent_id = $1 LIMIT 1`, id).Scan(&child)
		if err == nil {
			return errs.Conflict("account", id, "parent of account "+child)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("tillbook/postgres: check child accounts: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
			if isForeignKey(err) {
				return errs.Conflict("account", id, "still referenced")
			}
			return fmt.Errorf("tillbook/postgres: delete account: %w", err)
		}
		return nil
	})
}
