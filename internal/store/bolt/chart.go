package bolt

import (
	"context"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

// typeRecord keeps seed order alongside the type.
type typeRecord struct {
	model.AccountType
	Position uint64
}

func (s *Store) CountAccountTypes(_ context.Context) (int, error) {
	var n int
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountTypes)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) SeedChart(_ context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error {
	return s.update(func(tx *bolt.Tx) error {
		tb, err := bucket(tx, BucketAccountTypes)
		if err != nil {
			return err
		}
		if k, _ := tb.Cursor().First(); k != nil {
			return store.ErrChartSeeded
		}
		for _, t := range types {
			pos, err := tb.NextSequence()
			if err != nil {
				return err
			}
			if err := putJSON(tb, []byte(t.ID), typeRecord{AccountType: t, Position: pos}); err != nil {
				return err
			}
		}
		for _, st := range subTypes {
			if err := putSubType(tx, &st); err != nil {
				return err
			}
		}
		for _, a := range accounts {
			if err := putNewAccount(tx, &a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListAccountTypes(_ context.Context) ([]model.AccountType, error) {
	var records []typeRecord
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountTypes)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, r typeRecord) error {
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	result := make([]model.AccountType, len(records))
	for i, r := range records {
		result[i] = r.AccountType
	}
	return result, nil
}

func (s *Store) GetAccountType(_ context.Context, id string) (*model.AccountType, error) {
	var r typeRecord
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountTypes)
		if err != nil {
			return err
		}
		found, err := getJSON(b, []byte(id), &r)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("account type", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r.AccountType, nil
}

func putSubType(tx *bolt.Tx, st *model.AccountSubType) error {
	b, err := bucket(tx, BucketAccountSubTypes)
	if err != nil {
		return err
	}
	if b.Get([]byte(st.ID)) != nil {
		return errs.Validation("account sub-type %q already exists", st.ID)
	}
	types, err := bucket(tx, BucketAccountTypes)
	if err != nil {
		return err
	}
	if types.Get([]byte(st.TypeID)) == nil {
		return errs.Validation("unknown account type %q", st.TypeID)
	}
	return putJSON(b, []byte(st.ID), st)
}

func (s *Store) CreateAccountSubType(_ context.Context, st *model.AccountSubType) error {
	return s.update(func(tx *bolt.Tx) error { return putSubType(tx, st) })
}

func (s *Store) GetAccountSubType(_ context.Context, id string) (*model.AccountSubType, error) {
	var st model.AccountSubType
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountSubTypes)
		if err != nil {
			return err
		}
		found, err := getJSON(b, []byte(id), &st)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("account sub-type", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListAccountSubTypes(_ context.Context, typeID string) ([]model.AccountSubType, error) {
	result := make([]model.AccountSubType, 0)
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountSubTypes)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, st model.AccountSubType) error {
			if typeID == "" || st.TypeID == typeID {
				result = append(result, st)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) DeleteAccountSubType(_ context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccountSubTypes)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) == nil {
			return errs.NotFound("account sub-type", id)
		}
		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		err = forEachJSON(accounts, func(_ []byte, a model.Account) error {
			if a.SubTypeID == id {
				return errs.Conflict("account sub-type", id, "referenced by account "+a.Code)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}

// checkAccountRefs verifies the account's type, sub-type and parent exist.
func checkAccountRefs(tx *bolt.Tx, a *model.Account) error {
	refs := []struct {
		bucket, id string
	}{
		{BucketAccountTypes, a.TypeID},
		{BucketAccountSubTypes, a.SubTypeID},
		{BucketAccounts, a.ParentID},
	}
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		b, err := bucket(tx, r.bucket)
		if err != nil {
			return err
		}
		if b.Get([]byte(r.id)) == nil {
			return errs.Validation("account %s references an unknown type, sub-type or parent", a.Code)
		}
	}
	return nil
}

func putNewAccount(tx *bolt.Tx, a *model.Account) error {
	accounts, err := bucket(tx, BucketAccounts)
	if err != nil {
		return err
	}
	codes, err := bucket(tx, BucketAccountCodes)
	if err != nil {
		return err
	}
	if accounts.Get([]byte(a.ID)) != nil {
		return errs.Validation("account %q already exists", a.ID)
	}
	if codes.Get([]byte(a.Code)) != nil {
		return errs.Validation("account code %q already exists", a.Code)
	}
	if err := checkAccountRefs(tx, a); err != nil {
		return err
	}
	if err := putJSON(accounts, []byte(a.ID), a); err != nil {
		return err
	}
	return codes.Put([]byte(a.Code), []byte(a.ID))
}

func (s *Store) CreateAccount(_ context.Context, a *model.Account) error {
	return s.update(func(tx *bolt.Tx) error { return putNewAccount(tx, a) })
}

func (s *Store) UpdateAccount(_ context.Context, a *model.Account) error {
	return s.update(func(tx *bolt.Tx) error {
		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		codes, err := bucket(tx, BucketAccountCodes)
		if err != nil {
			return err
		}

		var old model.Account
		found, err := getJSON(accounts, []byte(a.ID), &old)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("account", a.ID)
		}
		if owner := codes.Get([]byte(a.Code)); owner != nil && string(owner) != a.ID {
			return errs.Validation("account code %q already exists", a.Code)
		}
		if err := checkAccountRefs(tx, a); err != nil {
			return err
		}

		if old.Code != a.Code {
			if err := codes.Delete([]byte(old.Code)); err != nil {
				return err
			}
		}
		if err := codes.Put([]byte(a.Code), []byte(a.ID)); err != nil {
			return err
		}
		return putJSON(accounts, []byte(a.ID), a)
	})
}

func getAccount(tx *bolt.Tx, id string) (*model.Account, error) {
	b, err := bucket(tx, BucketAccounts)
	if err != nil {
		return nil, err
	}
	var a model.Account
	found, err := getJSON(b, []byte(id), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.NotFound("account", id)
	}
	return &a, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*model.Account, error) {
	var a *model.Account
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		a, err = getAccount(tx, id)
		return err
	})
	return a, err
}

func (s *Store) GetAccountByCode(_ context.Context, code string) (*model.Account, error) {
	var a *model.Account
	err := s.view(func(tx *bolt.Tx) error {
		codes, err := bucket(tx, BucketAccountCodes)
		if err != nil {
			return err
		}
		id := codes.Get([]byte(code))
		if id == nil {
			return errs.NotFound("account code", code)
		}
		a, err = getAccount(tx, string(id))
		return err
	})
	return a, err
}

func (s *Store) ListAccounts(_ context.Context, f model.AccountFilter) ([]model.Account, error) {
	result := make([]model.Account, 0)
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, a model.Account) error {
			if f.Match(a) {
				result = append(result, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	store.SortAccounts(result)
	return result, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		a, err := getAccount(tx, id)
		if err != nil {
			return err
		}

		lines, err := bucket(tx, BucketLines)
		if err != nil {
			return err
		}
		err = forEachJSON(lines, func(_ []byte, l model.TransactionLine) error {
			if l.AccountID == id {
				return errs.Conflict("account", id, "referenced by transaction lines")
			}
			return nil
		})
		if err != nil {
			return err
		}

		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		err = forEachJSON(accounts, func(_ []byte, child model.Account) error {
			if child.ParentID == id {
				return errs.Conflict("account", id, "parent of account "+child.Code)
			}
			return nil
		})
		if err != nil {
			return err
		}

		codes, err := bucket(tx, BucketAccountCodes)
		if err != nil {
			return err
		}
		if err := codes.Delete([]byte(a.Code)); err != nil {
			return fmt.Errorf("deleting code index: %w", err)
		}
		return accounts.Delete([]byte(id))
	})
}
