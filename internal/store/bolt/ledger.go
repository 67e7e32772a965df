package bolt

import (
	"context"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

func (s *Store) InsertGroup(_ context.Context, g model.PostingGroup) error {
	return s.update(func(tx *bolt.Tx) error {
		keys, err := bucket(tx, BucketPostingKeys)
		if err != nil {
			return err
		}
		if keys.Get([]byte(g.Key)) != nil {
			return store.ErrDuplicatePosting
		}
		accounts, err := bucket(tx, BucketAccounts)
		if err != nil {
			return err
		}
		for _, l := range g.Lines {
			var a model.Account
			found, err := getJSON(accounts, []byte(l.AccountID), &a)
			if err != nil {
				return err
			}
			if !found {
				return errs.Validation("unknown account %q", l.AccountID)
			}
			if !a.Enabled {
				return errs.Validation("account %s is disabled", a.Code)
			}
		}

		if je := g.Journal; je != nil {
			if err := putJournal(tx, je); err != nil {
				return err
			}
		}

		lines, err := bucket(tx, BucketLines)
		if err != nil {
			return err
		}
		for _, l := range g.Lines {
			seq, err := lines.NextSequence()
			if err != nil {
				return err
			}
			l.Seq = int64(seq)
			l.PostingKey = g.Key
			if err := putJSON(lines, itob(l.Seq), l); err != nil {
				return err
			}
		}
		return keys.Put([]byte(g.Key), []byte{1})
	})
}

func putJournal(tx *bolt.Tx, je *model.JournalEntry) error {
	journals, err := bucket(tx, BucketJournals)
	if err != nil {
		return err
	}
	numbers, err := bucket(tx, BucketJournalNumbers)
	if err != nil {
		return err
	}
	if journals.Get([]byte(je.ID)) != nil {
		return errs.Validation("journal entry %q already exists", je.ID)
	}
	if numbers.Get([]byte(je.Number)) != nil {
		return errs.Validation("journal number %q already exists", je.Number)
	}
	if err := putJSON(journals, []byte(je.ID), je); err != nil {
		return err
	}
	return numbers.Put([]byte(je.Number), []byte(je.ID))
}

func (s *Store) QueryLines(_ context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	result := make([]model.TransactionLine, 0)
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketLines)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, l model.TransactionLine) error {
			if f.Match(l) {
				result = append(result, l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	store.SortLines(result)
	return result, nil
}

func (s *Store) NextSequence(_ context.Context, name string) (int64, error) {
	var n int64
	err := s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketSequences)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(name)); v != nil {
			n = btoi(v)
		}
		n++
		return b.Put([]byte(name), itob(n))
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) GetJournalEntry(_ context.Context, id string) (*model.JournalEntry, error) {
	var je model.JournalEntry
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketJournals)
		if err != nil {
			return err
		}
		found, err := getJSON(b, []byte(id), &je)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("journal entry", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &je, nil
}

func (s *Store) ListJournalEntries(_ context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	result := make([]model.JournalEntry, 0)
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketJournals)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, je model.JournalEntry) error {
			if r.Contains(je.Date) {
				result = append(result, je)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	store.SortJournalEntries(result)
	return result, nil
}

func (s *Store) DeleteJournalEntry(_ context.Context, id string) error {
	return s.update(func(tx *bolt.Tx) error {
		journals, err := bucket(tx, BucketJournals)
		if err != nil {
			return err
		}
		var je model.JournalEntry
		found, err := getJSON(journals, []byte(id), &je)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("journal entry", id)
		}

		lines, err := bucket(tx, BucketLines)
		if err != nil {
			return err
		}
		keys, err := bucket(tx, BucketPostingKeys)
		if err != nil {
			return err
		}
		var doomed [][]byte
		err = forEachJSON(lines, func(k []byte, l model.TransactionLine) error {
			if l.Reference == model.RefJournalEntry && l.ReferenceID == id {
				doomed = append(doomed, append([]byte(nil), k...))
				return keys.Delete([]byte(l.PostingKey))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Deleting during ForEach is unsafe in bbolt.
		for _, k := range doomed {
			if err := lines.Delete(k); err != nil {
				return err
			}
		}

		numbers, err := bucket(tx, BucketJournalNumbers)
		if err != nil {
			return err
		}
		if err := numbers.Delete([]byte(je.Number)); err != nil {
			return err
		}
		return journals.Delete([]byte(id))
	})
}

func (s *Store) EnqueuePending(_ context.Context, p *model.PendingPosting) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketPending)
		if err != nil {
			return err
		}
		if b.Get([]byte(p.ID)) != nil {
			return errs.Validation("pending posting %q already exists", p.ID)
		}
		return putJSON(b, []byte(p.ID), p)
	})
}

func (s *Store) UpdatePending(_ context.Context, p *model.PendingPosting) error {
	return s.update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketPending)
		if err != nil {
			return err
		}
		var existing model.PendingPosting
		found, err := getJSON(b, []byte(p.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("pending posting", p.ID)
		}
		existing.Status = p.Status
		existing.Attempts = p.Attempts
		existing.LastError = p.LastError
		existing.NextAttemptAt = p.NextAttemptAt
		existing.UpdatedAt = time.Now().UTC()
		return putJSON(b, []byte(p.ID), existing)
	})
}

func (s *Store) GetPending(_ context.Context, id string) (*model.PendingPosting, error) {
	var p model.PendingPosting
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketPending)
		if err != nil {
			return err
		}
		found, err := getJSON(b, []byte(id), &p)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound("pending posting", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPending(_ context.Context, f model.PendingFilter) ([]model.PendingPosting, error) {
	result := make([]model.PendingPosting, 0)
	err := s.view(func(tx *bolt.Tx) error {
		b, err := bucket(tx, BucketPending)
		if err != nil {
			return err
		}
		return forEachJSON(b, func(_ []byte, p model.PendingPosting) error {
			if f.Match(p) {
				result = append(result, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].NextAttemptAt.Before(result[j].NextAttemptAt)
	})
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}
