package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/model"
)

// Amounts are stored as decimal strings so no precision is lost to BSON
// doubles.

type accountTypeModel struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Position int    `bson:"position"`
}

type subTypeModel struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	TypeID string `bson:"type_id"`
}

type accountModel struct {
	ID          string    `bson:"_id"`
	Code        string    `bson:"code"`
	Name        string    `bson:"name"`
	TypeID      string    `bson:"type_id"`
	SubTypeID   string    `bson:"subtype_id,omitempty"`
	ParentID    string    `bson:"parent_id,omitempty"`
	Enabled     bool      `bson:"enabled"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type journalItemModel struct {
	ID          string `bson:"id"`
	AccountID   string `bson:"account_id"`
	Description string `bson:"description"`
	Debit       string `bson:"debit"`
	Credit      string `bson:"credit"`
}

type journalEntryModel struct {
	ID          string             `bson:"_id"`
	Number      string             `bson:"number"`
	Date        time.Time          `bson:"date"`
	Reference   string             `bson:"reference"`
	Description string             `bson:"description"`
	TotalDebit  string             `bson:"total_debit"`
	TotalCredit string             `bson:"total_credit"`
	Items       []journalItemModel `bson:"items"`
	CreatedAt   time.Time          `bson:"created_at"`
}

type lineModel struct {
	ID             string    `bson:"_id"`
	Seq            int64     `bson:"seq"`
	AccountID      string    `bson:"account_id"`
	Reference      string    `bson:"reference"`
	ReferenceID    string    `bson:"reference_id"`
	ReferenceSubID string    `bson:"reference_sub_id"`
	Date           time.Time `bson:"date"`
	Debit          string    `bson:"debit"`
	Credit         string    `bson:"credit"`
	Description    string    `bson:"description"`
	PostingKey     string    `bson:"posting_key"`
	CreatedAt      time.Time `bson:"created_at"`
}

type counterModel struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type pendingModel struct {
	ID            string    `bson:"_id"`
	Kind          string    `bson:"kind"`
	SourceID      string    `bson:"source_id"`
	Payload       []byte    `bson:"payload"`
	Status        string    `bson:"status"`
	Attempts      int       `bson:"attempts"`
	LastError     string    `bson:"last_error"`
	NextAttemptAt time.Time `bson:"next_attempt_at"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tillbook/mongo: parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func toAccountModel(a *model.Account) *accountModel {
	return &accountModel{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		TypeID:      a.TypeID,
		SubTypeID:   a.SubTypeID,
		ParentID:    a.ParentID,
		Enabled:     a.Enabled,
		Description: a.Description,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func fromAccountModel(m *accountModel) model.Account {
	return model.Account{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		TypeID:      m.TypeID,
		SubTypeID:   m.SubTypeID,
		ParentID:    m.ParentID,
		Enabled:     m.Enabled,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func toJournalModel(je *model.JournalEntry) *journalEntryModel {
	items := make([]journalItemModel, len(je.Items))
	for i, it := range je.Items {
		items[i] = journalItemModel{
			ID:          it.ID,
			AccountID:   it.AccountID,
			Description: it.Description,
			Debit:       it.Debit.String(),
			Credit:      it.Credit.String(),
		}
	}
	return &journalEntryModel{
		ID:          je.ID,
		Number:      je.Number,
		Date:        je.Date.UTC(),
		Reference:   je.Reference,
		Description: je.Description,
		TotalDebit:  je.TotalDebit.String(),
		TotalCredit: je.TotalCredit.String(),
		Items:       items,
		CreatedAt:   je.CreatedAt.UTC(),
	}
}

func fromJournalModel(m *journalEntryModel) (*model.JournalEntry, error) {
	totalDebit, err := parseAmount("total_debit", m.TotalDebit)
	if err != nil {
		return nil, err
	}
	totalCredit, err := parseAmount("total_credit", m.TotalCredit)
	if err != nil {
		return nil, err
	}

	items := make([]model.JournalItem, len(m.Items))
	for i, it := range m.Items {
		debit, err := parseAmount("debit", it.Debit)
		if err != nil {
			return nil, err
		}
		credit, err := parseAmount("credit", it.Credit)
		if err != nil {
			return nil, err
		}
		items[i] = model.JournalItem{
			ID:          it.ID,
			EntryID:     m.ID,
			AccountID:   it.AccountID,
			Description: it.Description,
			Debit:       debit,
			Credit:      credit,
		}
	}

	return &model.JournalEntry{
		ID:          m.ID,
		Number:      m.Number,
		Date:        m.Date.UTC(),
		Reference:   m.Reference,
		Description: m.Description,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Items:       items,
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

func toLineModel(l *model.TransactionLine) *lineModel {
	return &lineModel{
		ID:             l.ID,
		Seq:            l.Seq,
		AccountID:      l.AccountID,
		Reference:      string(l.Reference),
		ReferenceID:    l.ReferenceID,
		ReferenceSubID: l.ReferenceSubID,
		Date:           l.Date.UTC(),
		Debit:          l.Debit.String(),
		Credit:         l.Credit.String(),
		Description:    l.Description,
		PostingKey:     l.PostingKey,
		CreatedAt:      l.CreatedAt.UTC(),
	}
}

func fromLineModel(m *lineModel) (model.TransactionLine, error) {
	debit, err := parseAmount("debit", m.Debit)
	if err != nil {
		return model.TransactionLine{}, err
	}
	credit, err := parseAmount("credit", m.Credit)
	if err != nil {
		return model.TransactionLine{}, err
	}
	return model.TransactionLine{
		ID:             m.ID,
		Seq:            m.Seq,
		AccountID:      m.AccountID,
		Reference:      model.Reference(m.Reference),
		ReferenceID:    m.ReferenceID,
		ReferenceSubID: m.ReferenceSubID,
		Date:           m.Date.UTC(),
		Debit:          debit,
		Credit:         credit,
		Description:    m.Description,
		PostingKey:     m.PostingKey,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}

func toPendingModel(p *model.PendingPosting) *pendingModel {
	return &pendingModel{
		ID:            p.ID,
		Kind:          string(p.Kind),
		SourceID:      p.SourceID,
		Payload:       p.Payload,
		Status:        string(p.Status),
		Attempts:      p.Attempts,
		LastError:     p.LastError,
		NextAttemptAt: p.NextAttemptAt.UTC(),
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

func fromPendingModel(m *pendingModel) model.PendingPosting {
	return model.PendingPosting{
		ID:            m.ID,
		Kind:          model.Reference(m.Kind),
		SourceID:      m.SourceID,
		Payload:       m.Payload,
		Status:        model.PendingStatus(m.Status),
		Attempts:      m.Attempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt.UTC(),
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}
