// Package mongo implements store.Store on MongoDB. Multi-document writes use
// session transactions, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/cleared-dev/tillbook/internal/errs"
	"github.com/cleared-dev/tillbook/internal/model"
	"github.com/cleared-dev/tillbook/internal/store"
)

// Collection name constants.
const (
	colAccountTypes    = "tillbook_account_types"
	colAccountSubTypes = "tillbook_account_subtypes"
	colAccounts        = "tillbook_accounts"
	colJournalEntries  = "tillbook_journal_entries"
	colLines           = "tillbook_transaction_lines"
	colPostingKeys     = "tillbook_posting_keys"
	colCounters        = "tillbook_counters"
	colPending         = "tillbook_pending_postings"
)

// lineCounter is the counters document that hands out line Seq values.
const lineCounter = "_lines"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using the official MongoDB driver.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri and uses the named database. Call Migrate before use.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tillbook/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, mapErr(fmt.Errorf("tillbook/mongo: ping: %w", err))
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.col(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("tillbook/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// withTx runs fn in a session transaction.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: start session: %w", err))
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return mapErr(err)
}

// mapErr marks network failures and transient transaction aborts as
// retryable and passes typed errors through unchanged.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return store.ErrClosed
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return store.Transient(err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return store.Transient(err)
	}
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func now() time.Time {
	return time.Now().UTC()
}

// ==================== Chart ====================

func (s *Store) CountAccountTypes(ctx context.Context) (int, error) {
	n, err := s.col(colAccountTypes).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, mapErr(fmt.Errorf("tillbook/mongo: count account types: %w", err))
	}
	return int(n), nil
}

func (s *Store) SeedChart(ctx context.Context, types []model.AccountType, subTypes []model.AccountSubType, accounts []model.Account) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		n, err := s.col(colAccountTypes).CountDocuments(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("tillbook/mongo: count account types: %w", err)
		}
		if n > 0 {
			return store.ErrChartSeeded
		}
		for i, t := range types {
			m := accountTypeModel{ID: t.ID, Name: string(t.Name), Position: i}
			if _, err := s.col(colAccountTypes).InsertOne(ctx, m); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return errs.Validation("account type %q already exists", t.Name)
				}
				return fmt.Errorf("tillbook/mongo: insert account type: %w", err)
			}
		}
		for _, st := range subTypes {
			m := subTypeModel{ID: st.ID, Name: st.Name, TypeID: st.TypeID}
			if _, err := s.col(colAccountSubTypes).InsertOne(ctx, m); err != nil {
				return fmt.Errorf("tillbook/mongo: insert account sub-type: %w", err)
			}
		}
		for _, a := range accounts {
			if _, err := s.col(colAccounts).InsertOne(ctx, toAccountModel(&a)); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return errs.Validation("account code %q already exists", a.Code)
				}
				return fmt.Errorf("tillbook/mongo: insert account: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListAccountTypes(ctx context.Context) ([]model.AccountType, error) {
	cur, err := s.col(colAccountTypes).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: list account types: %w", err))
	}
	var models []accountTypeModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode account types: %w", err))
	}
	result := make([]model.AccountType, len(models))
	for i, m := range models {
		result[i] = model.AccountType{ID: m.ID, Name: model.AccountTypeName(m.Name)}
	}
	return result, nil
}

func (s *Store) GetAccountType(ctx context.Context, id string) (*model.AccountType, error) {
	var m accountTypeModel
	err := s.col(colAccountTypes).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errs.NotFound("account type", id)
		}
		return nil, mapErr(fmt.Errorf("tillbook/mongo: get account type: %w", err))
	}
	return &model.AccountType{ID: m.ID, Name: model.AccountTypeName(m.Name)}, nil
}

func (s *Store) exists(ctx context.Context, col string, filter bson.M) (bool, error) {
	n, err := s.col(col).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (s *Store) CreateAccountSubType(ctx context.Context, st *model.AccountSubType) error {
	ok, err := s.exists(ctx, colAccountTypes, bson.M{"_id": st.TypeID})
	if err != nil {
		return fmt.Errorf("tillbook/mongo: check account type: %w", err)
	}
	if !ok {
		return errs.Validation("unknown account type %q", st.TypeID)
	}
	_, err = s.col(colAccountSubTypes).InsertOne(ctx, subTypeModel{ID: st.ID, Name: st.Name, TypeID: st.TypeID})
	if mongo.IsDuplicateKeyError(err) {
		return errs.Validation("account sub-type %q already exists", st.ID)
	}
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: create account sub-type: %w", err))
	}
	return nil
}

func (s *Store) GetAccountSubType(ctx context.Context, id string) (*model.AccountSubType, error) {
	var m subTypeModel
	err := s.col(colAccountSubTypes).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errs.NotFound("account sub-type", id)
		}
		return nil, mapErr(fmt.Errorf("tillbook/mongo: get account sub-type: %w", err))
	}
	return &model.AccountSubType{ID: m.ID, Name: m.Name, TypeID: m.TypeID}, nil
}

func (s *Store) ListAccountSubTypes(ctx context.Context, typeID string) ([]model.AccountSubType, error) {
	filter := bson.M{}
	if typeID != "" {
		filter["type_id"] = typeID
	}
	cur, err := s.col(colAccountSubTypes).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: list account sub-types: %w", err))
	}
	var models []subTypeModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode account sub-types: %w", err))
	}
	result := make([]model.AccountSubType, len(models))
	for i, m := range models {
		result[i] = model.AccountSubType{ID: m.ID, Name: m.Name, TypeID: m.TypeID}
	}
	return result, nil
}

func (s *Store) DeleteAccountSubType(ctx context.Context, id string) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		var ref accountModel
		err := s.col(colAccounts).FindOne(ctx, bson.M{"subtype_id": id}).Decode(&ref)
		if err == nil {
			return errs.Conflict("account sub-type", id, "referenced by account "+ref.Code)
		}
		if !isNoDocuments(err) {
			return fmt.Errorf("tillbook/mongo: check sub-type references: %w", err)
		}
		res, err := s.col(colAccountSubTypes).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("tillbook/mongo: delete account sub-type: %w", err)
		}
		if res.DeletedCount == 0 {
			return errs.NotFound("account sub-type", id)
		}
		return nil
	})
}

func (s *Store) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.col(colAccounts).InsertOne(ctx, toAccountModel(a))
	if mongo.IsDuplicateKeyError(err) {
		return errs.Validation("account code %q already exists", a.Code)
	}
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: create account: %w", err))
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *model.Account) error {
	m := toAccountModel(a)
	res, err := s.col(colAccounts).UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": bson.M{
		"code":        m.Code,
		"name":        m.Name,
		"type_id":     m.TypeID,
		"subtype_id":  m.SubTypeID,
		"parent_id":   m.ParentID,
		"enabled":     m.Enabled,
		"description": m.Description,
		"updated_at":  m.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return errs.Validation("account code %q already exists", a.Code)
	}
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: update account: %w", err))
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("account", a.ID)
	}
	return nil
}

func (s *Store) findAccount(ctx context.Context, filter bson.M, resource, key string) (*model.Account, error) {
	var m accountModel
	err := s.col(colAccounts).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errs.NotFound(resource, key)
		}
		return nil, mapErr(fmt.Errorf("tillbook/mongo: get account: %w", err))
	}
	a := fromAccountModel(&m)
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id}, "account", id)
}

func (s *Store) GetAccountByCode(ctx context.Context, code string) (*model.Account, error) {
	return s.findAccount(ctx, bson.M{"code": code}, "account code", code)
}

func (s *Store) ListAccounts(ctx context.Context, f model.AccountFilter) ([]model.Account, error) {
	filter := bson.M{}
	if f.TypeID != "" {
		filter["type_id"] = f.TypeID
	}
	if f.Enabled != nil {
		filter["enabled"] = *f.Enabled
	}
	cur, err := s.col(colAccounts).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: list accounts: %w", err))
	}
	var models []accountModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode accounts: %w", err))
	}
	result := make([]model.Account, len(models))
	for i := range models {
		result[i] = fromAccountModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		ok, err := s.exists(ctx, colAccounts, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("tillbook/mongo: check account: %w", err)
		}
		if !ok {
			return errs.NotFound("account", id)
		}
		if used, err := s.exists(ctx, colLines, bson.M{"account_id": id}); err != nil {
			return fmt.Errorf("tillbook/mongo: check account lines: %w", err)
		} else if used {
			return errs.Conflict("account", id, "referenced by transaction lines")
		}

		var child accountModel
		err = s.col(colAccounts).FindOne(ctx, bson.M{"parent_id": id}).Decode(&child)
		if err == nil {
			return errs.Conflict("account", id, "parent of account "+child.Code)
		}
		if !isNoDocuments(err) {
			return fmt.Errorf("tillbook/mongo: check child accounts: %w", err)
		}

		if _, err := s.col(colAccounts).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return fmt.Errorf("tillbook/mongo: delete account: %w", err)
		}
		return nil
	})
}

// ==================== Ledger ====================

func (s *Store) InsertGroup(ctx context.Context, g model.PostingGroup) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.col(colPostingKeys).InsertOne(ctx, bson.M{"_id": g.Key, "created_at": now()}); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrDuplicatePosting
			}
			return fmt.Errorf("tillbook/mongo: reserve posting key: %w", err)
		}

		ids := make([]string, 0, len(g.Lines))
		seen := make(map[string]bool)
		for _, l := range g.Lines {
			if !seen[l.AccountID] {
				seen[l.AccountID] = true
				ids = append(ids, l.AccountID)
			}
		}
		n, err := s.col(colAccounts).CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}, "enabled": true})
		if err != nil {
			return fmt.Errorf("tillbook/mongo: check accounts: %w", err)
		}
		if int(n) != len(ids) {
			return errs.Validation("posting group %s references an unknown or disabled account", g.Key)
		}

		if je := g.Journal; je != nil {
			if _, err := s.col(colJournalEntries).InsertOne(ctx, toJournalModel(je)); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return errs.Validation("journal number %q already exists", je.Number)
				}
				return fmt.Errorf("tillbook/mongo: insert journal entry: %w", err)
			}
		}

		if len(g.Lines) == 0 {
			return nil
		}
		last, err := s.advanceCounter(ctx, lineCounter, int64(len(g.Lines)))
		if err != nil {
			return err
		}
		first := last - int64(len(g.Lines)) + 1

		docs := make([]any, len(g.Lines))
		for i, l := range g.Lines {
			l.Seq = first + int64(i)
			l.PostingKey = g.Key
			docs[i] = toLineModel(&l)
		}
		if _, err := s.col(colLines).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("tillbook/mongo: insert lines: %w", err)
		}
		return nil
	})
}

func (s *Store) QueryLines(ctx context.Context, f model.LineFilter) ([]model.TransactionLine, error) {
	filter := bson.M{}
	if f.AccountID != "" {
		filter["account_id"] = f.AccountID
	}
	if f.Reference != "" {
		filter["reference"] = string(f.Reference)
	}
	if f.ReferenceID != "" {
		filter["reference_id"] = f.ReferenceID
	}
	date := bson.M{}
	if !f.From.IsZero() {
		date["$gte"] = f.From.UTC()
	}
	if !f.Before.IsZero() {
		date["$lt"] = f.Before.UTC()
	}
	if len(date) > 0 {
		filter["date"] = date
	}

	cur, err := s.col(colLines).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "seq", Value: 1}}))
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: query lines: %w", err))
	}
	var models []lineModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode lines: %w", err))
	}

	result := make([]model.TransactionLine, len(models))
	for i := range models {
		l, err := fromLineModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// advanceCounter atomically adds by to the named counter and returns the new
// value.
func (s *Store) advanceCounter(ctx context.Context, name string, by int64) (int64, error) {
	var c counterModel
	err := s.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": by}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, mapErr(fmt.Errorf("tillbook/mongo: advance counter %s: %w", name, err))
	}
	return c.Value, nil
}

func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	return s.advanceCounter(ctx, name, 1)
}

// ==================== Journal entries ====================

func (s *Store) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	var m journalEntryModel
	err := s.col(colJournalEntries).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errs.NotFound("journal entry", id)
		}
		return nil, mapErr(fmt.Errorf("tillbook/mongo: get journal entry: %w", err))
	}
	return fromJournalModel(&m)
}

func (s *Store) ListJournalEntries(ctx context.Context, r model.DateRange) ([]model.JournalEntry, error) {
	from, before := r.LineBounds()
	filter := bson.M{}
	date := bson.M{}
	if !from.IsZero() {
		date["$gte"] = from
	}
	if !before.IsZero() {
		date["$lt"] = before
	}
	if len(date) > 0 {
		filter["date"] = date
	}

	cur, err := s.col(colJournalEntries).Find(ctx, filter)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: list journal entries: %w", err))
	}
	var models []journalEntryModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode journal entries: %w", err))
	}

	result := make([]model.JournalEntry, len(models))
	for i := range models {
		je, err := fromJournalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = *je
	}
	store.SortJournalEntries(result)
	return result, nil
}

func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		res, err := s.col(colJournalEntries).DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("tillbook/mongo: delete journal entry: %w", err)
		}
		if res.DeletedCount == 0 {
			return errs.NotFound("journal entry", id)
		}

		lineFilter := bson.M{"reference": string(model.RefJournalEntry), "reference_id": id}
		cur, err := s.col(colLines).Find(ctx, lineFilter)
		if err != nil {
			return fmt.Errorf("tillbook/mongo: find journal lines: %w", err)
		}
		var lines []lineModel
		if err := cur.All(ctx, &lines); err != nil {
			return fmt.Errorf("tillbook/mongo: decode journal lines: %w", err)
		}
		seen := make(map[string]bool)
		var keyList []string
		for _, l := range lines {
			if !seen[l.PostingKey] {
				seen[l.PostingKey] = true
				keyList = append(keyList, l.PostingKey)
			}
		}

		if _, err := s.col(colLines).DeleteMany(ctx, lineFilter); err != nil {
			return fmt.Errorf("tillbook/mongo: delete journal lines: %w", err)
		}
		if len(keyList) > 0 {
			if _, err := s.col(colPostingKeys).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keyList}}); err != nil {
				return fmt.Errorf("tillbook/mongo: release posting keys: %w", err)
			}
		}
		return nil
	})
}

// ==================== Outbox ====================

func (s *Store) EnqueuePending(ctx context.Context, p *model.PendingPosting) error {
	_, err := s.col(colPending).InsertOne(ctx, toPendingModel(p))
	if mongo.IsDuplicateKeyError(err) {
		return errs.Validation("pending posting %q already exists", p.ID)
	}
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: enqueue pending posting: %w", err))
	}
	return nil
}

func (s *Store) UpdatePending(ctx context.Context, p *model.PendingPosting) error {
	res, err := s.col(colPending).UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"status":          string(p.Status),
		"attempts":        p.Attempts,
		"last_error":      p.LastError,
		"next_attempt_at": p.NextAttemptAt.UTC(),
		"updated_at":      now(),
	}})
	if err != nil {
		return mapErr(fmt.Errorf("tillbook/mongo: update pending posting: %w", err))
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("pending posting", p.ID)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, id string) (*model.PendingPosting, error) {
	var m pendingModel
	err := s.col(colPending).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, errs.NotFound("pending posting", id)
		}
		return nil, mapErr(fmt.Errorf("tillbook/mongo: get pending posting: %w", err))
	}
	p := fromPendingModel(&m)
	return &p, nil
}

func (s *Store) ListPending(ctx context.Context, f model.PendingFilter) ([]model.PendingPosting, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if !f.DueBefore.IsZero() {
		filter["next_attempt_at"] = bson.M{"$lte": f.DueBefore.UTC()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})
	if f.Limit > 0 {
		opts = opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.col(colPending).Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: list pending postings: %w", err))
	}
	var models []pendingModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, mapErr(fmt.Errorf("tillbook/mongo: decode pending postings: %w", err))
	}
	result := make([]model.PendingPosting, len(models))
	for i := range models {
		result[i] = fromPendingModel(&models[i])
	}
	return result, nil
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccountTypes: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAccounts: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "type_id", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		colJournalEntries: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
		colLines: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "reference", Value: 1}, {Key: "reference_id", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: -1}, {Key: "seq", Value: 1}}},
		},
		colPostingKeys: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colPending: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
	}
}
