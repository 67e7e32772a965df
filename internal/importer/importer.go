// Package importer reads point-of-sale event files dropped into the import
// directory and dispatches each event to the ledger. Each file's format is
// taken from its name: sales-*.csv, returns-*.csv, adjustments-*.csv,
// purchases-*.csv and payments-*.csv.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/tillbook/internal/posting"
)

// Parser converts an event CSV file into posting events.
type Parser interface {
	Parse(r io.Reader) ([]posting.Event, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SaleParser{})
	r.Register(ReturnParser{})
	r.Register(AdjustmentParser{})
	r.Register(PurchaseParser{})
	r.Register(PaymentParser{})
	return r
}

// FormatOf returns the format named by a file: the part of the base name
// before the first '-', '_' or '.'.
// "sales-2026-03-14.csv" -> "sales"
func FormatOf(fileName string) string {
	base := filepath.Base(fileName)
	if i := strings.IndexAny(base, "-_."); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

// processedDir is the subdirectory of the import directory for files that
// were fully dispatched.
const processedDir = "processed"

// Scan returns the CSV files directly inside dir. A missing dir has no files.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	dstDir := filepath.Join(dir, processedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	src := filepath.Join(dir, fileName)
	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Dispatcher posts an event, queueing it when the ledger is unavailable.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev posting.Event) (posting.Result, error)
}

// FileResult summarizes one imported file.
type FileResult struct {
	Name       string
	Format     string
	Events     int
	Posted     int
	Duplicates int
	Skipped    int
	Queued     int
	Err        error
}

// Importer dispatches event files.
type Importer struct {
	parsers    *Registry
	dispatcher Dispatcher
	logger     *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) { im.logger = logger }
}

// WithRegistry replaces the built-in parsers.
func WithRegistry(r *Registry) Option {
	return func(im *Importer) { im.parsers = r }
}

// New creates an Importer.
func New(d Dispatcher, opts ...Option) *Importer {
	im := &Importer{parsers: DefaultRegistry(), dispatcher: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports every CSV file in dir. A file is moved to processed/ only when
// all of its events were dispatched; other files are left for the next run.
// Re-running a partly dispatched file is safe because postings are keyed by
// source id.
func (im *Importer) Run(ctx context.Context, dir string) ([]FileResult, error) {
	files, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	var (
		results []FileResult
		failed  []error
	)
	for _, f := range files {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res := im.ImportFile(ctx, f)
		if res.Err == nil {
			res.Err = MarkProcessed(dir, f.Name)
		}
		if res.Err != nil {
			im.logger.Error("import failed", "file", f.Name, "error", res.Err)
			failed = append(failed, fmt.Errorf("%s: %w", f.Name, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(failed...)
}

// ImportFile parses one file and dispatches its events in order.
func (im *Importer) ImportFile(ctx context.Context, f FileInfo) FileResult {
	res := FileResult{Name: f.Name, Format: FormatOf(f.Name)}
	p := im.parsers.Get(res.Format)
	if p == nil {
		res.Err = fmt.Errorf("no parser for format %q", res.Format)
		return res
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		res.Err = fmt.Errorf("opening %s: %w", f.Name, err)
		return res
	}
	events, err := p.Parse(fh)
	fh.Close()
	if err != nil {
		res.Err = err
		return res
	}
	res.Events = len(events)

	for _, ev := range events {
		r, err := im.dispatcher.Dispatch(ctx, ev)
		if err != nil {
			res.Err = fmt.Errorf("dispatching %s: %w", posting.Key(ev), err)
			return res
		}
		switch {
		case r.Queued:
			res.Queued++
		case r.Duplicate:
			res.Duplicates++
		case r.Skipped:
			res.Skipped++
		default:
			res.Posted++
		}
	}

	im.logger.Info("imported event file",
		"file", f.Name,
		"format", res.Format,
		"events", res.Events,
		"posted", res.Posted,
		"duplicates", res.Duplicates,
		"queued", res.Queued,
	)
	return res
}
