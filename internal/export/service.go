package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/repository"
)

// Service is a tiny façade over the summaries repository that produces XLSX
// bytes for department briefings.
type Service struct {
	summaries repository.SummarizedContentRepository
	uploads   repository.UploadRepository
	registry  *department.Registry
	logger    *slog.Logger
}

func NewService(summaries repository.SummarizedContentRepository, uploads repository.UploadRepository, registry *department.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{summaries: summaries, uploads: uploads, registry: registry, logger: logger}
}

// ExportSummariesXLSX returns an XLSX workbook (as bytes). An empty
// departmentName exports every department; otherwise the name is resolved
// first so a typo fails instead of producing an empty workbook.
func (s *Service) ExportSummariesXLSX(ctx context.Context, departmentName string) ([]byte, error) {
	start := time.Now()

	var rows []*entity.SummarizedContent
	var err error
	scope := "all"
	if strings.TrimSpace(departmentName) == "" {
		rows, err = s.summaries.ListAll(ctx)
	} else {
		dept, rerr := s.registry.Resolve(departmentName)
		if rerr != nil {
			return nil, rerr
		}
		scope = dept.Name
		rows, err = s.summaries.ListByDepartment(ctx, dept.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Summaries"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop excelize's default sheet so the workbook opens on ours.
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Created",
		"Department",
		"Title",
		"Description",
		"Related Tags",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range rows {
		sourcePath := ""
		if r.UploadID != nil {
			if up, err := s.uploads.GetByID(ctx, *r.UploadID); err == nil {
				sourcePath = up.FilePath
			}
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.CreatedAt.Format("2006-01-02 15:04"))
		write(2, r.Department)
		write(3, r.Title)
		write(4, truncate(r.Description, 500))
		write(5, strings.Join(r.RelatedTags, ", "))
		write(6, sourcePath)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // created
	_ = f.SetColWidth(sheet, "B", "B", 26) // department
	_ = f.SetColWidth(sheet, "C", "C", 32) // title
	_ = f.SetColWidth(sheet, "D", "D", 70) // description
	_ = f.SetColWidth(sheet, "E", "E", 30) // tags
	_ = f.SetColWidth(sheet, "F", "F", 50) // source

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"scope", scope,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
