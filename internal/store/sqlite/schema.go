package sqlite

// Schema creates every table the ledger needs. Amounts are stored as decimal
// strings and times as fixed-width UTC text so lexical order is time order.
const Schema = `
CREATE TABLE IF NOT EXISTS account_types (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_subtypes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type_id TEXT NOT NULL REFERENCES account_types(id)
);

CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type_id TEXT NOT NULL REFERENCES account_types(id),
    subtype_id TEXT REFERENCES account_subtypes(id),
    parent_id TEXT REFERENCES accounts(id),
    enabled INTEGER NOT NULL DEFAULT 1,
    description TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(type_id);
CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id);

CREATE TABLE IF NOT EXISTS journal_entries (
    id TEXT PRIMARY KEY,
    number TEXT NOT NULL UNIQUE,
    date TEXT NOT NULL,
    reference TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    total_debit TEXT NOT NULL,
    total_credit TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_date ON journal_entries(date);

CREATE TABLE IF NOT EXISTS journal_items (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    description TEXT NOT NULL DEFAULT '',
    debit TEXT NOT NULL,
    credit TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_items_entry ON journal_items(entry_id);

-- Posting keys make group inserts idempotent
CREATE TABLE IF NOT EXISTS posting_keys (
    key TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS transaction_lines (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    account_id TEXT NOT NULL REFERENCES accounts(id),
    reference TEXT NOT NULL,
    reference_id TEXT NOT NULL,
    reference_sub_id TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    debit TEXT NOT NULL,
    credit TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    posting_key TEXT NOT NULL REFERENCES posting_keys(key),
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_account_date ON transaction_lines(account_id, date);
CREATE INDEX IF NOT EXISTS idx_lines_reference ON transaction_lines(reference, reference_id);

CREATE TABLE IF NOT EXISTS sequences (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_postings (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    source_id TEXT NOT NULL,
    payload BLOB NOT NULL,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    next_attempt_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_status_due ON pending_postings(status, next_attempt_at);
`
