// Package export mirrors the import pipeline in reverse: it reads typed
// records from storage and serializes them to delimited text or a JSON
// backup envelope.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/craftbooks/craftbooks/internal/csvio"
	"github.com/craftbooks/craftbooks/internal/importer"
)

// BackupFormatVersion identifies the JSON envelope layout.
const BackupFormatVersion = 1

// product is the filename prefix for generated exports.
const product = "craftbooks"

// RecordSource reads typed records for an entity. Values are keyed by
// FieldSpec.Key, the same shape the import pipeline submits.
type RecordSource interface {
	Records(ctx context.Context, entity string) ([]map[string]any, error)
}

// Service serializes records from a RecordSource.
type Service struct {
	source RecordSource
	now    func() time.Time
}

// NewService creates an export service over the given record source.
func NewService(source RecordSource) *Service {
	return &Service{source: source, now: time.Now}
}

// BackupEnvelope wraps all records of every entity plus an export timestamp
// and format version. Used for full-system backup, not per-entity exchange.
type BackupEnvelope struct {
	Version    int                            `json:"version"`
	ExportedAt time.Time                      `json:"exportedAt"`
	Entities   map[string][]map[string]string `json:"entities"`
}

// WriteDelimited serializes one entity's records as delimited text. With
// template set, records are ignored and only the header row is written so
// the user can download a blank form matching the destination schema.
func (s *Service) WriteDelimited(ctx context.Context, w io.Writer, target importer.Target, template bool) error {
	headers := target.Headers()

	if template {
		return csvio.WriteDelimited(w, headers, nil, csvio.Options{})
	}

	records, err := s.source.Records(ctx, target.Entity)
	if err != nil {
		return fmt.Errorf("read %s records: %w", target.Entity, err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(target.Fields))
		for i, spec := range target.Fields {
			row[i] = importer.FormatValue(rec[spec.Key])
		}
		rows = append(rows, row)
	}

	return csvio.WriteDelimited(w, headers, rows, csvio.Options{})
}

// WriteBackup serializes every registered entity into one JSON envelope.
// Entity sources are read concurrently; the envelope is only written once
// all reads succeed.
func (s *Service) WriteBackup(ctx context.Context, w io.Writer) error {
	targets := importer.All()

	envelope := BackupEnvelope{
		Version:    BackupFormatVersion,
		ExportedAt: s.now().UTC(),
		Entities:   make(map[string][]map[string]string, len(targets)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, target := range targets {
		g.Go(func() error {
			records, err := s.source.Records(gctx, target.Entity)
			if err != nil {
				return fmt.Errorf("read %s records: %w", target.Entity, err)
			}

			formatted := make([]map[string]string, 0, len(records))
			for _, rec := range records {
				row := make(map[string]string, len(target.Fields))
				for _, spec := range target.Fields {
					row[spec.Key] = importer.FormatValue(rec[spec.Key])
				}
				formatted = append(formatted, row)
			}

			mu.Lock()
			envelope.Entities[target.Entity] = formatted
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

// FileName builds the download filename for a generated export:
// <product>-export-<entity-or-"all">-<ISO date>.<ext>.
func (s *Service) FileName(entity, ext string) string {
	if entity == "" {
		entity = "all"
	}
	return fmt.Sprintf("%s-export-%s-%s.%s", product, entity, s.now().Format("2006-01-02"), ext)
}

// MimeType returns the Content-Type for an export format.
func MimeType(format string) string {
	if format == "json" {
		return "application/json"
	}
	return "text/csv"
}
