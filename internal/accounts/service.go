// Package accounts manages the chart of accounts: seeding, account CRUD,
// sub-types, and the well-known accounts the posting adapters depend on.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/id"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Registry is the chart of accounts backed by a store.
type Registry struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry over s.
func NewRegistry(s store.Store, opts ...Option) *Registry {
	r := &Registry{store: s, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AccountSpec describes a new account.
type AccountSpec struct {
	Code        string
	Name        string
	TypeID      string
	SubTypeID   string
	ParentID    string
	Description string
	Disabled    bool
}

// AccountPatch changes selected fields of an account. Nil fields are left
// unchanged; an empty SubTypeID or ParentID clears it.
type AccountPatch struct {
	Code        *string
	Name        *string
	SubTypeID   *string
	ParentID    *string
	Enabled     *bool
	Description *string
}

// Initialize seeds the account types, sub-types and starter chart. It is a
// no-op when any account type already exists and reports whether it seeded.
func (r *Registry) Initialize(ctx context.Context) (bool, error) {
	return r.InitializeFrom(ctx, DefaultSubTypes(), DefaultChart())
}

// InitializeFrom is Initialize with a caller-supplied chart, e.g. one read
// from a CSV file. Sub-types named by rows but absent from subTypes are
// created too.
func (r *Registry) InitializeFrom(ctx context.Context, subTypes []SubTypeRow, rows []ChartRow) (bool, error) {
	// Fast path for an existing project; SeedChart repeats the check
	// atomically.
	n, err := r.store.CountAccountTypes(ctx)
	if err != nil {
		return false, fmt.Errorf("checking chart: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	types, sts, accts, err := r.buildChart(subTypes, rows)
	if err != nil {
		return false, err
	}

	err = r.store.SeedChart(ctx, types, sts, accts)
	if errors.Is(err, store.ErrChartSeeded) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seeding chart: %w", err)
	}

	r.logger.Info("seeded chart of accounts",
		"types", len(types),
		"subtypes", len(sts),
		"accounts", len(accts),
	)
	return true, nil
}

func (r *Registry) buildChart(subTypes []SubTypeRow, rows []ChartRow) ([]model.AccountType, []model.AccountSubType, []model.Account, error) {
	now := r.now().UTC()

	types := make([]model.AccountType, 0, len(model.AccountTypeNames))
	typeIDs := make(map[model.AccountTypeName]string, len(model.AccountTypeNames))
	for _, name := range model.AccountTypeNames {
		t := model.AccountType{ID: id.New(id.PrefixAccountType), Name: name}
		types = append(types, t)
		typeIDs[name] = t.ID
	}

	var sts []model.AccountSubType
	subIDs := make(map[string]string)
	addSubType := func(name string, typ model.AccountTypeName) {
		key := string(typ) + "/" + name
		if _, ok := subIDs[key]; ok {
			return
		}
		st := model.AccountSubType{ID: id.New(id.PrefixAccountSubType), Name: name, TypeID: typeIDs[typ]}
		sts = append(sts, st)
		subIDs[key] = st.ID
	}
	for _, st := range subTypes {
		addSubType(st.Name, st.Type)
	}

	var problems []string
	accountIDs := make(map[string]string, len(rows))
	rowTypes := make(map[string]model.AccountTypeName, len(rows))
	for _, row := range rows {
		switch {
		case row.Code == "" || row.Name == "":
			problems = append(problems, fmt.Sprintf("account %q: code and name are required", row.Code))
			continue
		case !row.Type.Valid():
			problems = append(problems, fmt.Sprintf("account %s: unknown type %q", row.Code, row.Type))
			continue
		}
		if _, dup := accountIDs[row.Code]; dup {
			problems = append(problems, fmt.Sprintf("account %s: duplicate code", row.Code))
			continue
		}
		accountIDs[row.Code] = id.New(id.PrefixAccount)
		rowTypes[row.Code] = row.Type
		if row.SubType != "" {
			addSubType(row.SubType, row.Type)
		}
	}

	accts := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		acctID, ok := accountIDs[row.Code]
		if !ok || row.Name == "" || !row.Type.Valid() {
			continue
		}
		a := model.Account{
			ID:          acctID,
			Code:        row.Code,
			Name:        row.Name,
			TypeID:      typeIDs[row.Type],
			Enabled:     row.Enabled,
			Description: row.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if row.SubType != "" {
			a.SubTypeID = subIDs[string(row.Type)+"/"+row.SubType]
		}
		if row.ParentCode != "" {
			parentID, ok := accountIDs[row.ParentCode]
			switch {
			case !ok:
				problems = append(problems, fmt.Sprintf("account %s: unknown parent %s", row.Code, row.ParentCode))
			case rowTypes[row.ParentCode] != row.Type:
				problems = append(problems, fmt.Sprintf("account %s: parent %s is a different type", row.Code, row.ParentCode))
			case row.ParentCode == row.Code:
				problems = append(problems, fmt.Sprintf("account %s: cannot be its own parent", row.Code))
			default:
				a.ParentID = parentID
			}
		}
		accts = append(accts, a)
	}

	if len(problems) > 0 {
		return nil, nil, nil, errs.Invalid("invalid chart of accounts", problems)
	}
	return types, sts, accts, nil
}

// CreateAccount validates spec and adds the account.
func (r *Registry) CreateAccount(ctx context.Context, spec AccountSpec) (*model.Account, error) {
	spec.Code = strings.TrimSpace(spec.Code)
	spec.Name = strings.TrimSpace(spec.Name)

	var problems []string
	if spec.Code == "" {
		problems = append(problems, "code is required")
	}
	if spec.Name == "" {
		problems = append(problems, "name is required")
	}
	if spec.TypeID == "" {
		problems = append(problems, "type is required")
	} else if _, err := r.store.GetAccountType(ctx, spec.TypeID); err != nil {
		if !errs.IsNotFound(err) {
			return nil, fmt.Errorf("loading account type: %w", err)
		}
		problems = append(problems, fmt.Sprintf("unknown account type %q", spec.TypeID))
	}
	if spec.Code != "" {
		if _, err := r.store.GetAccountByCode(ctx, spec.Code); err == nil {
			problems = append(problems, fmt.Sprintf("account code %q already exists", spec.Code))
		} else if !errs.IsNotFound(err) {
			return nil, fmt.Errorf("checking account code: %w", err)
		}
	}
	more, err := r.checkPlacement(ctx, "", spec.TypeID, spec.SubTypeID, spec.ParentID)
	if err != nil {
		return nil, err
	}
	problems = append(problems, more...)
	if len(problems) > 0 {
		return nil, errs.Invalid("invalid account", problems)
	}

	now := r.now().UTC()
	a := &model.Account{
		ID:          id.New(id.PrefixAccount),
		Code:        spec.Code,
		Name:        spec.Name,
		TypeID:      spec.TypeID,
		SubTypeID:   spec.SubTypeID,
		ParentID:    spec.ParentID,
		Enabled:     !spec.Disabled,
		Description: spec.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.CreateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("creating account %s: %w", a.Code, err)
	}
	r.logger.Info("account created", "account_id", a.ID, "code", a.Code)
	return a, nil
}

// checkPlacement validates the sub-type and parent of an account of typeID.
// selfID is "" for a new account.
func (r *Registry) checkPlacement(ctx context.Context, selfID, typeID, subTypeID, parentID string) ([]string, error) {
	var problems []string
	if subTypeID != "" {
		st, err := r.store.GetAccountSubType(ctx, subTypeID)
		switch {
		case errs.IsNotFound(err):
			problems = append(problems, fmt.Sprintf("unknown account sub-type %q", subTypeID))
		case err != nil:
			return nil, fmt.Errorf("loading account sub-type: %w", err)
		case typeID != "" && st.TypeID != typeID:
			problems = append(problems, fmt.Sprintf("sub-type %q belongs to a different account type", st.Name))
		}
	}
	if parentID == "" {
		return problems, nil
	}
	if parentID == selfID {
		return append(problems, "account cannot be its own parent"), nil
	}

	parent, err := r.store.GetAccount(ctx, parentID)
	switch {
	case errs.IsNotFound(err):
		return append(problems, fmt.Sprintf("unknown parent account %q", parentID)), nil
	case err != nil:
		return nil, fmt.Errorf("loading parent account: %w", err)
	case typeID != "" && parent.TypeID != typeID:
		problems = append(problems, fmt.Sprintf("parent account %s is a different type", parent.Code))
	}

	// Walk up from the parent; reaching selfID would close a cycle.
	if selfID != "" {
		seen := map[string]bool{parent.ID: true}
		for cur := parent; cur.ParentID != ""; {
			if cur.ParentID == selfID {
				problems = append(problems, fmt.Sprintf("parent account %s is a descendant", parent.Code))
				break
			}
			if seen[cur.ParentID] {
				break
			}
			seen[cur.ParentID] = true
			next, err := r.store.GetAccount(ctx, cur.ParentID)
			if err != nil {
				break
			}
			cur = next
		}
	}
	return problems, nil
}

// UpdateAccount applies patch to the account with the given id.
func (r *Registry) UpdateAccount(ctx context.Context, accountID string, patch AccountPatch) (*model.Account, error) {
	a, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var problems []string
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		switch {
		case code == "":
			problems = append(problems, "code is required")
		case code != a.Code:
			if _, err := r.store.GetAccountByCode(ctx, code); err == nil {
				problems = append(problems, fmt.Sprintf("account code %q already exists", code))
			} else if !errs.IsNotFound(err) {
				return nil, fmt.Errorf("checking account code: %w", err)
			}
		}
		a.Code = code
	}
	if patch.Name != nil {
		a.Name = strings.TrimSpace(*patch.Name)
		if a.Name == "" {
			problems = append(problems, "name is required")
		}
	}
	if patch.SubTypeID != nil {
		a.SubTypeID = *patch.SubTypeID
	}
	if patch.ParentID != nil {
		a.ParentID = *patch.ParentID
	}
	if patch.Enabled != nil {
		a.Enabled = *patch.Enabled
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}

	if patch.SubTypeID != nil || patch.ParentID != nil {
		subTypeID, parentID := "", ""
		if patch.SubTypeID != nil {
			subTypeID = a.SubTypeID
		}
		if patch.ParentID != nil {
			parentID = a.ParentID
		}
		more, err := r.checkPlacement(ctx, a.ID, a.TypeID, subTypeID, parentID)
		if err != nil {
			return nil, err
		}
		problems = append(problems, more...)
	}
	if len(problems) > 0 {
		return nil, errs.Invalid("invalid account", problems)
	}

	a.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("updating account %s: %w", a.Code, err)
	}
	return a, nil
}

// DisableAccount stops new postings to an account. Its history is kept.
func (r *Registry) DisableAccount(ctx context.Context, accountID string) (*model.Account, error) {
	enabled := false
	return r.UpdateAccount(ctx, accountID, AccountPatch{Enabled: &enabled})
}

// EnableAccount re-enables a disabled account.
func (r *Registry) EnableAccount(ctx context.Context, accountID string) (*model.Account, error) {
	enabled := true
	return r.UpdateAccount(ctx, accountID, AccountPatch{Enabled: &enabled})
}

// GetAccount returns an account by id.
func (r *Registry) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return r.store.GetAccount(ctx, accountID)
}

// GetAccountByCode returns an account by its unique code.
func (r *Registry) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	return r.store.GetAccountByCode(ctx, code)
}

// ListAccounts returns accounts ordered by code.
func (r *Registry) ListAccounts(ctx context.Context, f model.AccountFilter) ([]model.Account, error) {
	return r.store.ListAccounts(ctx, f)
}

// DeleteAccount removes an account that no line or child account references.
// Referenced accounts should be disabled instead.
func (r *Registry) DeleteAccount(ctx context.Context, accountID string) error {
	if err := r.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	r.logger.Info("account deleted", "account_id", accountID)
	return nil
}

// ListTypes returns the fixed account types in chart order.
func (r *Registry) ListTypes(ctx context.Context) ([]model.AccountType, error) {
	return r.store.ListAccountTypes(ctx)
}

// TypeByName returns the seeded account type with the given name
// (case-insensitive).
func (r *Registry) TypeByName(ctx context.Context, name string) (*model.AccountType, error) {
	types, err := r.store.ListAccountTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		if strings.EqualFold(string(t.Name), name) {
			return &t, nil
		}
	}
	return nil, errs.NotFound("account type", name)
}

// TypeNames maps account type ids to their names.
func (r *Registry) TypeNames(ctx context.Context) (map[string]model.AccountTypeName, error) {
	types, err := r.store.ListAccountTypes(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]model.AccountTypeName, len(types))
	for _, t := range types {
		m[t.ID] = t.Name
	}
	return m, nil
}

// ListSubTypes returns the sub-types of typeID, or all when typeID is "".
func (r *Registry) ListSubTypes(ctx context.Context, typeID string) ([]model.AccountSubType, error) {
	return r.store.ListAccountSubTypes(ctx, typeID)
}

// CreateSubType adds a reporting group under an account type.
func (r *Registry) CreateSubType(ctx context.Context, name, typeID string) (*model.AccountSubType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("sub-type name is required")
	}
	if _, err := r.store.GetAccountType(ctx, typeID); err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Validation("unknown account type %q", typeID)
		}
		return nil, err
	}
	st := &model.AccountSubType{ID: id.New(id.PrefixAccountSubType), Name: name, TypeID: typeID}
	if err := r.store.CreateAccountSubType(ctx, st); err != nil {
		return nil, fmt.Errorf("creating sub-type %q: %w", name, err)
	}
	return st, nil
}

// DeleteSubType removes a sub-type no account references.
func (r *Registry) DeleteSubType(ctx context.Context, subTypeID string) error {
	return r.store.DeleteAccountSubType(ctx, subTypeID)
}

// Export returns the chart as CSV rows ordered by code.
func (r *Registry) Export(ctx context.Context) ([]ChartRow, error) {
	typeNames, err := r.TypeNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing account types: %w", err)
	}
	subTypes, err := r.store.ListAccountSubTypes(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing sub-types: %w", err)
	}
	subNames := make(map[string]string, len(subTypes))
	for _, st := range subTypes {
		subNames[st.ID] = st.Name
	}
	accts, err := r.store.ListAccounts(ctx, model.AccountFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	codes := make(map[string]string, len(accts))
	for _, a := range accts {
		codes[a.ID] = a.Code
	}

	rows := make([]ChartRow, 0, len(accts))
	for _, a := range accts {
		rows = append(rows, ChartRow{
			Code:        a.Code,
			Name:        a.Name,
			Type:        typeNames[a.TypeID],
			SubType:     subNames[a.SubTypeID],
			ParentCode:  codes[a.ParentID],
			Enabled:     a.Enabled,
			Description: a.Description,
		})
	}
	return rows, nil
}

// RequirePostable returns the account with code when it exists and is
// enabled, or a PostingIntegrityError naming it.
func (r *Registry) RequirePostable(ctx context.Context, event, sourceID, code string) (*model.Account, error) {
	a, err := r.store.GetAccountByCode(ctx, code)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.PostingIntegrity(event, sourceID, code+" (missing)")
	}
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", code, err)
	}
	if !a.Enabled {
		return nil, errs.PostingIntegrity(event, sourceID, code+" (disabled)")
	}
	return a, nil
}
