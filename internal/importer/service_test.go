package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestService(store BatchStore) *Service {
	return NewService(store, NewLimiter(2, time.Second), 5)
}

func recipeText(rows int) string {
	var sb strings.Builder
	sb.WriteString("Name,Category,Servings,Total Cost\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&sb, "Recipe %d,Dessert,%d,$%d.00\n", i, i, i)
	}
	return sb.String()
}

func TestPreview(t *testing.T) {
	svc := newTestService(&fakeStore{})

	preview, err := svc.Preview("recipes", recipeText(8), nil)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.TotalRows != 8 {
		t.Errorf("TotalRows = %d, want 8", preview.TotalRows)
	}
	if len(preview.SampleRows) != 5 {
		t.Errorf("got %d sample rows, want 5 (preview cap)", len(preview.SampleRows))
	}
	if preview.Columns["name"] != "Name" {
		t.Errorf("Columns[name] = %q, want Name", preview.Columns["name"])
	}
	if len(preview.Missing) != 0 {
		t.Errorf("Missing = %v, want none", preview.Missing)
	}
	if preview.SampleRows[0]["totalCost"] != "1" {
		t.Errorf("sample totalCost = %q, want coerced value", preview.SampleRows[0]["totalCost"])
	}
}

func TestPreview_SnakeCaseHeaders(t *testing.T) {
	// The orders target locates its header line via hints. A file spelling
	// the columns in snake_case must pass the hint scan and map exactly,
	// not fail before mapping runs.
	svc := newTestService(&fakeStore{})

	preview, err := svc.Preview("orders", "order_number,Event Type\nA1,Wedding\n", nil)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.Columns["orderNumber"] != "order_number" {
		t.Errorf("Columns[orderNumber] = %q, want order_number", preview.Columns["orderNumber"])
	}
	if preview.Columns["eventType"] != "Event Type" {
		t.Errorf("Columns[eventType] = %q, want Event Type", preview.Columns["eventType"])
	}
	if len(preview.Missing) != 0 {
		t.Errorf("Missing = %v, want none", preview.Missing)
	}
}

func TestPreview_MissingRequired(t *testing.T) {
	svc := newTestService(&fakeStore{})

	preview, err := svc.Preview("recipes", "Category,Servings\nDessert,2\n", nil)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if len(preview.Missing) != 1 || preview.Missing[0] != "Name" {
		t.Errorf("Missing = %v, want [Name]", preview.Missing)
	}
}

func TestPreview_UnknownTarget(t *testing.T) {
	svc := newTestService(&fakeStore{})

	if _, err := svc.Preview("widgets", "a\nb\n", nil); err == nil {
		t.Fatal("Preview() expected error for unknown target")
	}
}

func TestStartAndWait(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	id, err := svc.Start(context.Background(), "recipes", "recipes.csv", recipeText(10), nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	report, err := svc.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if !report.Success {
		t.Errorf("Success = false, errors: %v, session error: %s", report.Errors, report.Error)
	}
	if report.SuccessCount != 10 {
		t.Errorf("SuccessCount = %d, want 10", report.SuccessCount)
	}
	if report.Entity != "recipes" || report.FileName != "recipes.csv" {
		t.Errorf("report identity = %s/%s", report.Entity, report.FileName)
	}
	if len(report.Headers) == 0 {
		t.Error("report should carry the source headers")
	}
}

func TestStart_RejectsMissingRequired(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.Start(context.Background(), "recipes", "", "Category\nDessert\n", nil)
	if err == nil {
		t.Fatal("Start() expected error for unmapped required field")
	}
	if len(store.batches) != 0 {
		t.Errorf("store received %d batches, want 0", len(store.batches))
	}
}

func TestStart_ManualOverride(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	// "Product" does not auto-map to Name; the override makes it required-complete.
	id, err := svc.Start(context.Background(), "recipes", "", "Product,Servings\nCake,2\n",
		map[string]string{"name": "Product"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	report, err := svc.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if report.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", report.SuccessCount)
	}

	rec := store.batches[0][0]
	if got := FormatValue(rec.Values["name"]); got != "Cake" {
		t.Errorf("name = %q, want value from overridden column", got)
	}
}

func TestProgressAndReportLookup(t *testing.T) {
	svc := newTestService(&fakeStore{})

	id, err := svc.Start(context.Background(), "recipes", "", recipeText(3), nil)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	progress, ok := svc.Progress(id)
	if !ok {
		t.Fatal("Progress() session not found")
	}
	if progress.Processed != 3 || progress.Total != 3 {
		t.Errorf("progress = %+v, want 3/3", progress)
	}

	report, ok := svc.Report(id)
	if !ok || report == nil {
		t.Fatal("Report() should return the finished report")
	}

	if _, ok := svc.Progress("nope"); ok {
		t.Error("Progress() should not find unknown session")
	}
	if ok := svc.CancelSession("nope"); ok {
		t.Error("CancelSession() should not find unknown session")
	}
}

func TestStart_LimiterFull(t *testing.T) {
	// A store that blocks until released keeps sessions active.
	block := make(chan struct{})
	store := &blockingStore{release: block}
	svc := NewService(store, NewLimiter(1, 50*time.Millisecond), 5)

	id, err := svc.Start(context.Background(), "recipes", "", recipeText(1), nil)
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	_, err = svc.Start(context.Background(), "recipes", "", recipeText(1), nil)
	if err != ErrTooManyImports {
		t.Errorf("second Start() error = %v, want ErrTooManyImports", err)
	}

	close(block)
	if _, err := svc.Wait(context.Background(), id); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

type blockingStore struct {
	release chan struct{}
}

func (b *blockingStore) SubmitBatch(ctx context.Context, entity string, records []TypedRecord) (BatchResult, error) {
	<-b.release
	return BatchResult{Inserted: len(records)}, nil
}
