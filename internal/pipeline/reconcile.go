package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docpipe/internal/repository"
	"github.com/joseph-ayodele/docpipe/internal/vectorindex"
)

// Reconciler repairs the inconsistency window between the semantic index and
// the relational rows. An index point with no matching row is an orphan from a
// failed insert and gets deleted; a row with no index point is only logged,
// the row remains the source of truth.
type Reconciler struct {
	index     vectorindex.Index
	summaries repository.SummarizedContentRepository
	logger    *slog.Logger
}

func NewReconciler(index vectorindex.Index, summaries repository.SummarizedContentRepository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{index: index, summaries: summaries, logger: logger}
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	IndexPoints    int
	Rows           int
	OrphanPoints   []string // deleted from the index
	UnindexedRows  []string // summarized_contents ids logged for operators
	DeleteFailures int
}

func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report

	ids, err := r.index.List(ctx)
	if err != nil {
		return rep, err
	}
	rep.IndexPoints = len(ids)

	rows, err := r.summaries.ListAll(ctx)
	if err != nil {
		return rep, err
	}
	rep.Rows = len(rows)

	rowByVector := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.VectorID != "" {
			rowByVector[row.VectorID] = true
		}
	}

	for _, id := range ids {
		if !rowByVector[id] {
			rep.OrphanPoints = append(rep.OrphanPoints, id)
		}
	}
	if len(rep.OrphanPoints) > 0 {
		r.logger.Warn("reconcile.orphan_points", "count", len(rep.OrphanPoints))
		if err := r.index.Delete(ctx, rep.OrphanPoints); err != nil {
			r.logger.Error("reconcile.delete_failed", "error", err)
			rep.DeleteFailures = len(rep.OrphanPoints)
		}
	}

	indexed := make(map[string]bool, len(ids))
	for _, id := range ids {
		indexed[id] = true
	}
	for _, row := range rows {
		if row.VectorID != "" && !indexed[row.VectorID] {
			rep.UnindexedRows = append(rep.UnindexedRows, row.ID.String())
			r.logger.Warn("reconcile.row_without_point", "summary_id", row.ID, "vector_id", row.VectorID)
		}
	}

	r.logger.Info("reconcile.done",
		"index_points", rep.IndexPoints,
		"rows", rep.Rows,
		"orphan_points", len(rep.OrphanPoints),
		"unindexed_rows", len(rep.UnindexedRows),
	)
	return rep, nil
}
