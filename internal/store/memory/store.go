// Package memory is an in-process Store used by tests and the "memory"
// database driver. A single RWMutex makes every write atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Chart storage
	types    []model.AccountType
	subTypes map[string]model.AccountSubType
	accounts map[string]model.Account

	// Ledger storage
	lines   []model.TransactionLine
	keys    map[string]bool
	nextSeq int64

	journals  map[string]model.JournalEntry
	sequences map[string]int64
	pending   map[string]model.PendingPosting
}

func New() *Store {
	return &Store{
		subTypes:  make(map[string]model.AccountSubType),
		accounts:  make(map[string]model.Account),
		keys:      make(map[string]bool),
		journals:  make(map[string]model.JournalEntry),
		sequences: make(map[string]int64),
		pending:   make(map[string]model.PendingPosting),
	}
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Chart of accounts

func (s *Store) CountAccountTypes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.types), nil
}

func (s *Store) SeedChart(_ context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.types) > 0 {
		return store.ErrChartSeeded
	}
	codes := make(map[string]bool, len(s.accounts)+len(accounts))
	for _, a := range s.accounts {
		codes[a.Code] = true
	}
	for _, a := range accounts {
		if codes[a.Code] {
			return errs.Validation("account code %q already exists", a.Code)
		}
		codes[a.Code] = true
	}

	s.types = append(s.types, types...)
	for _, st := range subTypes {
		s.subTypes[st.ID] = st
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return nil
}

func (s *Store) ListAccountTypes(_ context.Context) ([]model.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AccountType, len(s.types))
	copy(result, s.types)
	return result, nil
}

func (s *Store) GetAccountType(_ context.Context, id string) (*model.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.types {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, errs.NotFound("account type", id)
}

func (s *Store) CreateAccountSubType(_ context.Context, st *model.AccountSubType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subTypes[st.ID]; exists {
		return errs.Validation("account sub-type %q already exists", st.ID)
	}
	s.subTypes[st.ID] = *st
	return nil
}

func (s *Store) GetAccountSubType(_ context.Context, id string) (*model.AccountSubType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.subTypes[id]; ok {
		return &st, nil
	}
	return nil, errs.NotFound("account sub-type", id)
}

func (s *Store) ListAccountSubTypes(_ context.Context, typeID string) ([]model.AccountSubType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AccountSubType, 0)
	for _, st := range s.subTypes {
		if typeID == "" || st.TypeID == typeID {
			result = append(result, st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) DeleteAccountSubType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subTypes[id]; !ok {
		return errs.NotFound("account sub-type", id)
	}
	for _, a := range s.accounts {
		if a.SubTypeID == id {
			return errs.Conflict("account sub-type", id, "referenced by account "+a.Code)
		}
	}
	delete(s.subTypes, id)
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return errs.Validation("account %q already exists", a.ID)
	}
	for _, other := range s.accounts {
		if other.Code == a.Code {
			return errs.Validation("account code %q already exists", a.Code)
		}
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; !exists {
		return errs.NotFound("account", a.ID)
	}
	for _, other := range s.accounts {
		if other.ID != a.ID && other.Code == a.Code {
			return errs.Validation("account code %q already exists", a.Code)
		}
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[id]; ok {
		return &a, nil
	}
	return nil, errs.NotFound("account", id)
}

func (s *Store) GetAccountByCode(_ context.Context, code string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, errs.NotFound("account code", code)
}

func (s *Store) ListAccounts(_ context.Context, f model.AccountFilter) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if f.Match(a) {
			result = append(result, a)
		}
	}
	store.SortAccounts(result)
	return result, nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return errs.NotFound("account", id)
	}
	for _, l := range s.lines {
		if l.AccountID == id {
			return errs.Conflict("account", id, "referenced by transaction lines")
		}
	}
	for _, a := range s.accounts {
		if a.ParentID == id {
			return errs.Conflict("account", id, "parent of account "+a.Code)
		}
	}
	delete(s.accounts, id)
	return nil
}

// Ledger

func (s *Store) InsertGroup(_ context.Context, g model.PostingGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.keys[g.Key] {
		return store.ErrDuplicatePosting
	}
	for _, l := range g.Lines {
		a, ok := s.accounts[l.AccountID]
		if !ok {
			return errs.Validation("unknown account %q", l.AccountID)
		}
		if !a.Enabled {
			return errs.Validation("account %s is disabled", a.Code)
		}
	}
	if g.Journal != nil {
		if _, exists := s.journals[g.Journal.ID]; exists {
			return errs.Validation("journal entry %q already exists", g.Journal.ID)
		}
		for _, je := range s.journals {
			if je.Number == g.Journal.Number {
				return errs.Validation("journal number %q already exists", g.Journal.Number)
			}
		}
		s.journals[g.Journal.ID] = cloneEntry(*g.Journal)
	}

	for _, l := range g.Lines {
		s.nextSeq++
		l.Seq = s.nextSeq
		l.PostingKey = g.Key
		s.lines = append(s.lines, l)
	}
	s.keys[g.Key] = true
	return nil
}

func (s *Store) QueryLines(_ context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.TransactionLine, 0)
	for _, l := range s.lines {
		if f.Match(l) {
			result = append(result, l)
		}
	}
	store.SortLines(result)
	return result, nil
}

// Journal entries

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[name]++
	return s.sequences[name], nil
}

func (s *Store) GetJournalEntry(_ context.Context, id string) (*model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if je, ok := s.journals[id]; ok {
		c := cloneEntry(je)
		return &c, nil
	}
	return nil, errs.NotFound("journal entry", id)
}

func (s *Store) ListJournalEntries(_ context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.JournalEntry, 0)
	for _, je := range s.journals {
		if r.Contains(je.Date) {
			result = append(result, cloneEntry(je))
		}
	}
	store.SortJournalEntries(result)
	return result, nil
}

func (s *Store) DeleteJournalEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journals[id]; !ok {
		return errs.NotFound("journal entry", id)
	}
	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.Reference == model.RefJournalEntry && l.ReferenceID == id {
			delete(s.keys, l.PostingKey)
			continue
		}
		kept = append(kept, l)
	}
	s.lines = kept
	delete(s.journals, id)
	return nil
}

// Outbox

func (s *Store) EnqueuePending(_ context.Context, p *model.PendingPosting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[p.ID]; exists {
		return errs.Validation("pending posting %q already exists", p.ID)
	}
	s.pending[p.ID] = clonePending(*p)
	return nil
}

func (s *Store) UpdatePending(_ context.Context, p *model.PendingPosting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[p.ID]; !exists {
		return errs.NotFound("pending posting", p.ID)
	}
	updated := clonePending(*p)
	updated.UpdatedAt = time.Now().UTC()
	s.pending[p.ID] = updated
	return nil
}

func (s *Store) GetPending(_ context.Context, id string) (*model.PendingPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pending[id]; ok {
		c := clonePending(p)
		return &c, nil
	}
	return nil, errs.NotFound("pending posting", id)
}

func (s *Store) ListPending(_ context.Context, f model.PendingFilter) ([]model.PendingPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.PendingPosting, 0)
	for _, p := range s.pending {
		if f.Match(p) {
			result = append(result, clonePending(p))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].NextAttemptAt.Before(result[j].NextAttemptAt)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func cloneEntry(je model.JournalEntry) model.JournalEntry {
	items := make([]model.JournalItem, len(je.Items))
	copy(items, je.Items)
	je.Items = items
	return je
}

func clonePending(p model.PendingPosting) model.PendingPosting {
	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)
	p.Payload = payload
	return p
}
