package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/llm"
	"github.com/joseph-ayodele/docpipe/internal/ocr"
	"github.com/joseph-ayodele/docpipe/internal/repository"
	"github.com/joseph-ayodele/docpipe/internal/vectorindex"
)

// failingSummaries fails the first N inserts, then delegates.
type failingSummaries struct {
	repository.SummarizedContentRepository
	failures int
}

func (f *failingSummaries) Insert(ctx context.Context, sc *entity.SummarizedContent) (*entity.SummarizedContent, error) {
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("connection reset by peer")
	}
	return f.SummarizedContentRepository.Insert(ctx, sc)
}

func TestReconcileDeletesOrphanIndexPoints(t *testing.T) {
	h := newHarness(t,
		fakeRecognizer{pages: []ocr.PageResult{page(1, pageOneText)}},
		fakeClassifier{byText: map[string][]llm.TopicAssignment{
			pageOneText: {{DepartmentName: "Rolling Stock Operations", TopicName: "Train delays"}},
		}},
		fakeEmbedder{vectors: map[string][]float32{}},
	)
	// The relational insert fails after the index write: the acknowledged
	// inconsistency window.
	h.deps.Summaries = &failingSummaries{SummarizedContentRepository: h.deps.Summaries, failures: 1}

	jobID, uploadID := h.newRun(t, "/data/minutes.pdf")
	ctx := context.Background()
	if err := h.orchestrator().ProcessDocument(ctx, jobID, uploadID); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if got := h.jobState(t, jobID); got != constants.JobStatePartial {
		t.Errorf("lost summary must degrade the job: state = %s", got)
	}

	ids, _ := h.index.List(ctx)
	if len(ids) != 1 {
		t.Fatalf("expected 1 orphan index point, got %d", len(ids))
	}

	rec := NewReconciler(h.index, h.deps.Summaries, slog.Default())
	rep, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rep.OrphanPoints) != 1 {
		t.Errorf("orphan points = %v", rep.OrphanPoints)
	}
	if ids, _ := h.index.List(ctx); len(ids) != 0 {
		t.Errorf("orphan point not deleted: %v", ids)
	}

	// A second pass over the repaired state is a no-op.
	rep, err = rec.Run(ctx)
	if err != nil || len(rep.OrphanPoints) != 0 || len(rep.UnindexedRows) != 0 {
		t.Errorf("second pass not clean: %+v (%v)", rep, err)
	}
}

func TestReconcileLogsRowsWithoutIndexPoints(t *testing.T) {
	h := newHarness(t,
		fakeRecognizer{},
		fakeClassifier{},
		fakeEmbedder{vectors: map[string][]float32{}},
	)
	ctx := context.Background()
	_, uploadID := h.newRun(t, "/data/minutes.pdf")

	// Row persisted with a vector id that never made it into the index.
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	vid := vectorindex.EntryID(day, "Ghost topic", "procurement")
	if _, err := h.deps.Summaries.Insert(ctx, &entity.SummarizedContent{
		Title:       "Ghost",
		Description: "no point behind this row",
		UploadID:    &uploadID,
		Department:  "procurement",
		VectorID:    vid,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := NewReconciler(h.index, h.deps.Summaries, slog.Default())
	rep, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rep.UnindexedRows) != 1 {
		t.Errorf("unindexed rows = %v", rep.UnindexedRows)
	}
	if len(rep.OrphanPoints) != 0 {
		t.Errorf("no orphans expected: %v", rep.OrphanPoints)
	}
}
