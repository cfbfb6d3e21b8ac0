package importer

// session.go drives one end-to-end import: validate the mapping, coerce
// every row, then submit fixed-size batches to the storage collaborator
// strictly in order. Each batch moves through an explicit state machine
// (pending -> in flight -> committed/failed); the next batch is only
// attempted once the previous one reached a terminal state, so record
// insertion order is preserved and partial-failure behavior is reproducible.

import (
	"context"
	"strings"

	"github.com/craftbooks/craftbooks/internal/csvio"
)

// DefaultBatchSize is the number of records submitted per storage call.
const DefaultBatchSize = 5

type batchState int

const (
	batchPending batchState = iota
	batchInFlight
	batchCommitted
	batchFailed
)

type batch struct {
	state   batchState
	records []TypedRecord
}

// Importer converts raw rows to typed records and submits them in batches.
type Importer struct {
	store     BatchStore
	batchSize int
	progress  ProgressFunc
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize overrides the batch size. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithProgress registers a progress callback, invoked after each batch
// reaches a terminal state.
func WithProgress(fn ProgressFunc) Option {
	return func(im *Importer) {
		im.progress = fn
	}
}

// NewImporter creates an Importer backed by the given storage collaborator.
func NewImporter(store BatchStore, opts ...Option) *Importer {
	im := &Importer{
		store:     store,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Run imports all rows of a tokenized document into the target. The mapping
// must pass Validate before any record is touched; a mapping failure means
// zero records were submitted. Coercion never rejects a row, so every
// well-formed row reaches the store; the store's per-record outcome (or a
// synthesized one on batch-level failure) lands in the returned outcome.
//
// Cancellation is cooperative: a cancelled context stops the session after
// the in-flight batch completes, and the partial outcome is returned
// alongside the context error.
func (im *Importer) Run(ctx context.Context, target Target, doc *csvio.Document, mapping *ColumnMapping) (*ImportOutcome, error) {
	if err := mapping.Validate(target.Fields); err != nil {
		return nil, err
	}

	outcome := &ImportOutcome{}

	// Coerce the full set up front. Rows the tokenizer flagged (field-count
	// mismatch in lenient mode) and fully empty rows never reach the store.
	var records []TypedRecord
	for _, row := range doc.Rows {
		if row.Err != "" {
			outcome.Errors = append(outcome.Errors, RecordError{
				Line:    row.Line,
				Raw:     row.Fields,
				Message: row.Err,
			})
			continue
		}
		if isEmptyRow(row.Fields) {
			continue
		}
		records = append(records, im.coerceRow(target, row, mapping))
	}

	total := len(records)
	batches := im.partition(records)

	processed := 0
	for i := range batches {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		b := &batches[i]
		b.state = batchInFlight

		result, err := im.store.SubmitBatch(ctx, target.Entity, b.records)
		if err != nil {
			// Batch-level failure: every record in the batch is failed and
			// gets its own error entry so no row vanishes from the report.
			b.state = batchFailed
			for _, rec := range b.records {
				outcome.Errors = append(outcome.Errors, RecordError{
					Line:    rec.Line,
					Raw:     rec.Raw,
					Message: err.Error(),
				})
			}
		} else {
			b.state = batchCommitted
			outcome.Inserted += result.Inserted
			outcome.Errors = append(outcome.Errors, result.Errors...)
		}

		processed += len(b.records)
		if im.progress != nil {
			im.progress(Progress{Processed: processed, Total: total})
		}
	}

	return outcome, nil
}

// coerceRow produces a TypedRecord from one raw row. Always succeeds.
func (im *Importer) coerceRow(target Target, row csvio.Row, mapping *ColumnMapping) TypedRecord {
	values := make(map[string]any, len(target.Fields))
	for _, spec := range target.Fields {
		raw := ""
		if idx := mapping.Index(spec.Key); idx >= 0 && idx < len(row.Fields) {
			raw = row.Fields[idx]
		}
		values[spec.Key] = coerceField(spec, raw)
	}

	return TypedRecord{
		Entity: target.Entity,
		Line:   row.Line,
		Raw:    row.Fields,
		Values: values,
	}
}

func (im *Importer) partition(records []TypedRecord) []batch {
	var batches []batch
	for start := 0; start < len(records); start += im.batchSize {
		end := start + im.batchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, batch{state: batchPending, records: records[start:end]})
	}
	return batches
}

func isEmptyRow(fields []string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
