// Package auditlog keeps an append-only CSV trail of destructive and failed
// ledger operations.
package auditlog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Actions recorded by the ledger.
const (
	ActionJournalDeleted  = "journal_deleted"
	ActionJournalReversed = "journal_reversed"
	ActionPostingFailed   = "posting_failed"
	ActionAccountDeleted  = "account_deleted"
)

// Entry is one row in the audit trail.
type Entry struct {
	Timestamp time.Time
	Actor     string
	Action    string
	Subject   string
	Details   string
}

// Header is the CSV header of the audit file.
const Header = "timestamp,actor,action,subject,details"

const (
	numFields    = 5
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colSubject   = 3
	colDetails   = 4
)

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Discard is a Recorder that drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Entry) error { return nil }

// Details JSON-encodes v for Entry.Details. Values that fail to encode are
// rendered with %v.
func Details(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colSubject] = e.Subject
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Action:    record[colAction],
		Subject:   record[colSubject],
		Details:   record[colDetails],
	}, nil
}

// FileRecorder appends entries to a CSV file, creating it with a header on
// first use. It is safe for concurrent use within one process.
type FileRecorder struct {
	path  string
	actor string
	now   func() time.Time
	mu    sync.Mutex
}

// NewFileRecorder returns a recorder writing to path. actor fills entries
// that do not name one.
func NewFileRecorder(path, actor string) *FileRecorder {
	return &FileRecorder{path: path, actor: actor, now: time.Now}
}

// Path returns the audit file path.
func (r *FileRecorder) Path() string { return r.path }

// Record appends e, stamping Timestamp and Actor when unset.
func (r *FileRecorder) Record(_ context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	if e.Actor == "" {
		e.Actor = r.actor
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return Append(r.path, []Entry{e})
}

// Append writes entries to path, creating the file and header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries in path. A missing file yields no entries.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
