// Package importer implements the tabular import pipeline: field mapping,
// value coercion, and batched submission to storage with per-row error
// reporting. It has no HTTP or UI dependencies.
package importer

import (
	"context"
)

// Kind is the destination type a raw field value is coerced to.
type Kind int

const (
	KindText Kind = iota
	KindCurrency
	KindInteger
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindCurrency:
		return "currency"
	case KindInteger:
		return "integer"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// FieldSpec defines one destination attribute an import target populates.
// Specs are immutable for the duration of an import session.
type FieldSpec struct {
	Key      string // destination field key, e.g. "orderNumber"
	Label    string // display label, e.g. "Order Number"
	Kind     Kind
	Required bool

	// IntegerDefault is the fallback for KindInteger fields whose raw value
	// yields no digits at all.
	IntegerDefault int64

	// DateFallbackNow makes an unparseable or absent date coerce to the
	// current processing date instead of "no date". Only creation-timestamp
	// fields set this.
	DateFallbackNow bool
}

// Target describes one import destination (orders, recipes, ...).
type Target struct {
	Entity string // unique key, also the storage entity name
	Label  string // display name
	Fields []FieldSpec

	// HeaderHints names columns used to locate the real header line when
	// the source embeds metadata rows above it. Empty means the first
	// non-blank line is the header.
	HeaderHints []string
}

// Headers returns the display labels in spec order, used for templates and
// failed-row exports.
func (t Target) Headers() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Label
	}
	return out
}

// TypedRecord is one row after coercion, ready for submission to storage.
// Values maps FieldSpec.Key to a pgtype value (Numeric, Int8, Date, Text).
// Immutable once produced.
type TypedRecord struct {
	Entity string
	Line   int      // 1-indexed source line, for error reporting
	Raw    []string // original raw fields, carried for error reporting
	Values map[string]any
}

// RecordError describes one row that was not inserted.
type RecordError struct {
	Line    int      `json:"line"`
	Raw     []string `json:"raw,omitempty"`
	Message string   `json:"message"`
}

// ImportOutcome is the aggregated result of one import session, the only
// artifact that outlives the session.
type ImportOutcome struct {
	Inserted int           `json:"inserted"`
	Errors   []RecordError `json:"errors"`
}

// ErrorCount returns the number of rows that failed.
func (o *ImportOutcome) ErrorCount() int {
	return len(o.Errors)
}

// FailedRows renders the error rows as delimited-text records with a leading
// status column, so the user can correct and re-import just those rows.
func (o *ImportOutcome) FailedRows() [][]string {
	rows := make([][]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		rows = append(rows, append([]string{e.Message}, e.Raw...))
	}
	return rows
}

// BatchResult is the storage collaborator's per-batch outcome.
type BatchResult struct {
	Inserted int
	Errors   []RecordError
}

// BatchStore is the storage collaborator contract. SubmitBatch returns the
// per-record outcome, or an error for a batch-level (transport) failure in
// which case no record in the batch may be assumed inserted. Each record
// insert, including dependent rows, must be all-or-nothing inside the store.
type BatchStore interface {
	SubmitBatch(ctx context.Context, entity string, records []TypedRecord) (BatchResult, error)
}

// Progress reports orchestrator advancement after each batch. Processed is
// monotonically increasing and reaches Total only after the last batch's
// outcome has been merged.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// ProgressFunc receives progress updates. Called from the importing
// goroutine; implementations must not block.
type ProgressFunc func(Progress)
