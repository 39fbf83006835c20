package export

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/repository"
)

func newTestExport(t *testing.T) (*Service, repository.SummarizedContentRepository) {
	t.Helper()
	logger := slog.Default()
	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "export.db"), logger)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })

	sums := repository.NewSummarizedContentRepository(db, logger)
	svc := NewService(sums, repository.NewUploadRepository(db, logger), department.Defaults(), logger)
	return svc, sums
}

func TestExportSummariesXLSX(t *testing.T) {
	svc, sums := newTestExport(t)
	ctx := context.Background()

	seed := []entity.SummarizedContent{
		{Title: "Delays", Description: "maintenance backlog", Department: "rolling_stock_operations", RelatedTags: []string{"Train delays"}},
		{Title: "Bogie order", Description: "spare parts", Department: "procurement"},
	}
	for i := range seed {
		if _, err := sums.Insert(ctx, &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	data, err := svc.ExportSummariesXLSX(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	t.Cleanup(func() { _ = wb.Close() })

	rows, err := wb.GetRows("Summaries")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 { // header + 2 rows
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][2] != "Title" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][2] != "Delays" || rows[1][4] != "Train delays" {
		t.Errorf("first row = %v", rows[1])
	}
}

func TestExportScopedToDepartment(t *testing.T) {
	svc, sums := newTestExport(t)
	ctx := context.Background()

	for _, sc := range []entity.SummarizedContent{
		{Title: "A", Description: "d", Department: "procurement"},
		{Title: "B", Description: "d", Department: "hr_safety"},
	} {
		sc := sc
		if _, err := sums.Insert(ctx, &sc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	data, err := svc.ExportSummariesXLSX(ctx, "Procurement")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = wb.Close() })
	rows, _ := wb.GetRows("Summaries")
	if len(rows) != 2 {
		t.Errorf("rows = %d, want header + 1", len(rows))
	}
}

func TestExportUnknownDepartment(t *testing.T) {
	svc, _ := newTestExport(t)

	_, err := svc.ExportSummariesXLSX(context.Background(), "astrology")
	if !common.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
