package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/craftbooks/craftbooks/internal/csvio"
	"github.com/google/uuid"
)

// SessionTimeout is the maximum duration for one import session.
var SessionTimeout = 10 * time.Minute

// cleanupDelay is how long finished sessions stay queryable.
var cleanupDelay = 5 * time.Minute

// Service owns import sessions: it tokenizes input, proposes and applies
// mappings, runs the orchestrator under the concurrency limiter, and keeps
// finished reports queryable for a short window.
type Service struct {
	store     BatchStore
	limiter   *Limiter
	batchSize int

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	ID       string
	Entity   string
	FileName string
	Cancel   context.CancelFunc
	Done     chan struct{}

	mu       sync.Mutex
	progress Progress
	report   *Report
}

// Report is the terminal artifact of one import session, returned to the
// caller and suitable for JSON encoding at the HTTP boundary.
type Report struct {
	SessionID    string        `json:"sessionId"`
	Entity       string        `json:"entity"`
	FileName     string        `json:"fileName,omitempty"`
	Success      bool          `json:"success"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
	Errors       []RecordError `json:"errors"`
	Headers      []string      `json:"-"` // source column order, for failed-row exports
	Duration     time.Duration `json:"-"`
	Error        string        `json:"error,omitempty"` // session-level failure
}

// NewService creates an import service. batchSize <= 0 means
// DefaultBatchSize.
func NewService(store BatchStore, limiter *Limiter, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		store:     store,
		limiter:   limiter,
		batchSize: batchSize,
		sessions:  make(map[string]*session),
	}
}

// MappingPreview is the read-only analysis returned before a commit:
// the proposed column mapping plus a coerced sample of the first rows.
type MappingPreview struct {
	Headers    []string            `json:"headers"`
	Columns    map[string]string   `json:"columns"` // field key -> source header
	Missing    []string            `json:"missingRequired,omitempty"`
	TotalRows  int                 `json:"totalRows"`
	SampleRows []map[string]string `json:"sampleRows"`
	RowErrors  []RecordError       `json:"rowErrors,omitempty"`
}

// previewSampleLimit caps how many coerced rows a preview returns.
const previewSampleLimit = 5

// Preview tokenizes the input and reports the proposed mapping along with
// the first few coerced rows, without touching storage.
func (s *Service) Preview(entity, text string, overrides map[string]string) (*MappingPreview, error) {
	target, ok := Get(entity)
	if !ok {
		return nil, fmt.Errorf("unknown import target: %s", entity)
	}

	doc, mapping, err := s.prepare(target, text, overrides)
	if err != nil {
		return nil, err
	}

	preview := &MappingPreview{
		Headers:   doc.Headers,
		Columns:   mapping.Columns(),
		TotalRows: len(doc.Rows),
	}
	if err := mapping.Validate(target.Fields); err != nil {
		if missing, ok := err.(*MissingRequiredFieldError); ok {
			preview.Missing = missing.Labels
		}
	}

	im := NewImporter(s.store, WithBatchSize(s.batchSize))
	for _, row := range doc.Rows {
		if len(preview.SampleRows) >= previewSampleLimit {
			break
		}
		if row.Err != "" {
			preview.RowErrors = append(preview.RowErrors, RecordError{
				Line: row.Line, Raw: row.Fields, Message: row.Err,
			})
			continue
		}
		if isEmptyRow(row.Fields) {
			continue
		}
		rec := im.coerceRow(target, row, mapping)
		sample := make(map[string]string, len(rec.Values))
		for key, v := range rec.Values {
			sample[key] = FormatValue(v)
		}
		preview.SampleRows = append(preview.SampleRows, sample)
	}

	return preview, nil
}

// Start begins an asynchronous import session and returns its ID. The
// overrides map (field key -> source header) is applied on top of the
// automatic mapping; the automatic pass never revisits an override.
func (s *Service) Start(ctx context.Context, entity, fileName, text string, overrides map[string]string) (string, error) {
	target, ok := Get(entity)
	if !ok {
		return "", fmt.Errorf("unknown import target: %s", entity)
	}

	// Structural and mapping failures reject the session before any record
	// is touched.
	doc, mapping, err := s.prepare(target, text, overrides)
	if err != nil {
		return "", err
	}
	if err := mapping.Validate(target.Fields); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	sessionCtx, cancel := context.WithTimeout(context.Background(), SessionTimeout)
	sess := &session{
		ID:       uuid.New().String(),
		Entity:   entity,
		FileName: fileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	go s.run(sessionCtx, sess, target, doc, mapping)

	return sess.ID, nil
}

func (s *Service) run(ctx context.Context, sess *session, target Target, doc *csvio.Document, mapping *ColumnMapping) {
	start := time.Now()
	defer func() {
		sess.Cancel()
		s.limiter.Release()
		close(sess.Done)
		s.cleanup(sess.ID, cleanupDelay)
	}()

	im := NewImporter(s.store,
		WithBatchSize(s.batchSize),
		WithProgress(func(p Progress) {
			sess.mu.Lock()
			sess.progress = p
			sess.mu.Unlock()
		}),
	)

	outcome, err := im.Run(ctx, target, doc, mapping)
	report := &Report{
		SessionID: sess.ID,
		Entity:    sess.Entity,
		FileName:  sess.FileName,
		Headers:   doc.Headers,
		Duration:  time.Since(start),
	}
	if outcome != nil {
		report.SuccessCount = outcome.Inserted
		report.ErrorCount = outcome.ErrorCount()
		report.Errors = outcome.Errors
	}
	if err != nil {
		report.Error = err.Error()
	}
	report.Success = err == nil && report.ErrorCount == 0

	sess.mu.Lock()
	sess.report = report
	sess.mu.Unlock()
}

// prepare tokenizes the input and builds the column mapping with overrides
// applied.
func (s *Service) prepare(target Target, text string, overrides map[string]string) (*csvio.Document, *ColumnMapping, error) {
	doc, err := csvio.Tokenize(text, csvio.Options{HeaderHints: target.HeaderHints})
	if err != nil {
		return nil, nil, err
	}

	mapping := ProposeMapping(doc.Headers, target.Fields)
	for key, header := range overrides {
		mapping.Set(key, header)
	}

	return doc, mapping, nil
}

// Wait blocks until the session finishes and returns its report.
func (s *Service) Wait(ctx context.Context, id string) (*Report, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown import session: %s", id)
	}

	select {
	case <-sess.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.report, nil
}

// Progress returns the session's current progress.
func (s *Service) Progress(id string) (Progress, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.progress, true
}

// Report returns the finished session's report, or nil while running.
func (s *Service) Report(id string) (*Report, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.report, true
}

// CancelSession requests cooperative cancellation: no further batch is
// issued after the in-flight one completes.
func (s *Service) CancelSession(id string) bool {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	sess.Cancel()
	return true
}

// WaitForImports blocks until all active sessions complete, for shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) cleanup(id string, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	})
}
