package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/repository"
	"github.com/joseph-ayodele/docpipe/internal/vectorindex"
)

// Config tunes the orchestrator.
type Config struct {
	TopK           int     // neighbors fetched per summary
	ScoreThreshold float32 // cosine score above which a neighbor contributes its tag
	TopicWorkers   int     // topic-level fan-out within a page; <=1 is sequential
}

// Deps are the orchestrator's collaborators, all injected.
type Deps struct {
	Recognizer PageRecognizer
	Classifier TopicClassifier
	Summarizer TopicSummarizer
	Embedder   vectorindex.Embedder
	Index      vectorindex.Index
	Registry   *department.Registry

	Jobs      repository.JobRepository
	Uploads   repository.UploadRepository
	Contents  repository.ExtractedContentRepository
	Lines     repository.ActionableLineRepository
	Summaries repository.SummarizedContentRepository
}

// Orchestrator drives one document through recognition, classification,
// summarization and the terminal job transition. Page- and topic-level
// failures are counted and skipped; they degrade the job to PARTIAL instead of
// aborting it.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	// now is swappable so tests control the index-entry date.
	now func() time.Time
}

func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.65
	}
	if cfg.TopicWorkers <= 0 {
		cfg.TopicWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger, now: time.Now}
}

// ProcessDocument runs the full pipeline for one upload and moves its job to a
// terminal state: FINISHED when every page and topic made it through, PARTIAL
// when anything was lost along the way. A document-level failure (unreadable
// PDF, missing upload) still terminates the job as PARTIAL so it does not hang
// in PENDING.
func (o *Orchestrator) ProcessDocument(ctx context.Context, jobID, uploadID uuid.UUID) error {
	run := ulid.Make().String()
	start := time.Now()
	log := o.logger.With("run_id", run, "job_id", jobID, "upload_id", uploadID)
	log.Info("pipeline.run.start")

	upload, err := o.deps.Uploads.GetByID(ctx, uploadID)
	if err != nil {
		log.Error("pipeline.upload.missing", "error", err)
		o.finish(ctx, log, jobID, true)
		return err
	}

	pages, err := o.deps.Recognizer.ExtractPages(ctx, upload.FilePath)
	if err != nil {
		log.Error("pipeline.recognize.failed", "path", upload.FilePath, "error", err)
		o.finish(ctx, log, jobID, true)
		return err
	}

	var lost atomic.Bool
	for _, page := range pages {
		if page.Err != nil {
			log.Warn("pipeline.page.failed", "page", page.PageNumber, "error", page.Err)
			lost.Store(true)
			continue
		}
		text := page.Text()
		if text == "" {
			// Blank pages still leave a provenance row; only classification
			// and summarization are skipped.
			log.Debug("pipeline.page.empty", "page", page.PageNumber)
			pn := page.PageNumber
			if _, err := o.deps.Contents.Upsert(ctx, uploadID, "", &pn); err != nil {
				log.Error("pipeline.content.upsert_failed", "page", pn, "error", err)
				lost.Store(true)
			}
			continue
		}
		if err := o.processPage(ctx, log, jobID, uploadID, upload, page.PageNumber, text, &lost); err != nil {
			// Only context cancellation propagates out of a page.
			o.finish(ctx, log, jobID, true)
			return err
		}
	}

	o.finish(ctx, log, jobID, lost.Load())
	log.Info("pipeline.run.done", "pages", len(pages), "lossy", lost.Load(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (o *Orchestrator) processPage(ctx context.Context, log *slog.Logger, jobID, uploadID uuid.UUID, upload *entity.Upload, pageNumber int, text string, lost *atomic.Bool) error {
	page := pageNumber
	content, err := o.deps.Contents.Upsert(ctx, uploadID, text, &page)
	if err != nil {
		log.Error("pipeline.content.upsert_failed", "page", page, "error", err)
		lost.Store(true)
		return ctx.Err()
	}

	assignments, err := o.deps.Classifier.Classify(ctx, text)
	if err != nil {
		log.Error("pipeline.classify.failed", "page", page, "error", err)
		lost.Store(true)
		return ctx.Err()
	}
	if len(assignments) == 0 {
		// A page with nothing actionable is a valid outcome, not a loss.
		log.Debug("pipeline.classify.empty", "page", page)
		return nil
	}

	// One actionable line per topic; a topic raised for several departments
	// keeps them all on the same line.
	type topicWork struct {
		topic string
		depts []department.Department
	}
	var ordered []*topicWork
	byTopic := map[string]*topicWork{}
	for _, a := range assignments {
		dept, err := o.deps.Registry.Resolve(a.DepartmentName)
		if err != nil {
			log.Error("pipeline.department.unknown", "page", page, "department", a.DepartmentName, "error", err)
			lost.Store(true)
			continue
		}
		w, ok := byTopic[a.TopicName]
		if !ok {
			w = &topicWork{topic: a.TopicName}
			byTopic[a.TopicName] = w
			ordered = append(ordered, w)
		}
		w.depts = append(w.depts, dept)
	}

	for _, w := range ordered {
		names := make([]string, len(w.depts))
		for i, d := range w.depts {
			names[i] = d.Name
		}
		line := &entity.ActionableLine{
			UploadID:        uploadID,
			JobID:           &jobID,
			ContentID:       &content.ID,
			ParaphrasedLine: w.topic,
			Departments:     names,
		}
		if _, err := o.deps.Lines.Insert(ctx, line); err != nil {
			log.Error("pipeline.line.insert_failed", "page", page, "topic", w.topic, "error", err)
			lost.Store(true)
			continue
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.TopicWorkers)
	for _, w := range ordered {
		for _, dept := range w.depts {
			topic, dept := w.topic, dept
			g.Go(func() error {
				if err := o.summarizeTopic(gctx, log, upload, dept, topic, text); err != nil {
					log.Error("pipeline.summarize.failed", "page", page, "topic", topic,
						"department", dept.Name, "error", err)
					lost.Store(true)
				}
				return gctx.Err()
			})
		}
	}
	return g.Wait()
}

// summarizeTopic runs the summarization side-effect chain in a fixed order:
// summarize, embed + query for related tags, index upsert, relational insert.
// The candidate point is written to the index only after the neighbor query,
// so a summary can never match itself. A relational failure after the index
// write opens a known inconsistency window; it is logged with the point id and
// repaired by the reconciliation pass.
func (o *Orchestrator) summarizeTopic(ctx context.Context, log *slog.Logger, upload *entity.Upload, dept department.Department, topic, pageText string) error {
	sum, err := o.deps.Summarizer.Summarize(ctx, dept, topic, pageText)
	if err != nil {
		return err
	}

	qvec, err := o.deps.Embedder.Embed(ctx, sum.Description)
	if err != nil {
		return err
	}
	neighbors, err := o.deps.Index.Query(ctx, qvec, o.cfg.TopK)
	if err != nil {
		return err
	}
	var tags []string
	for _, n := range neighbors {
		if n.Score > o.cfg.ScoreThreshold && n.Entry.Topic != "" {
			tags = append(tags, n.Entry.Topic)
		}
	}

	day := o.now().UTC()
	pointID := vectorindex.EntryID(day, topic, dept.Name)
	tvec, err := o.deps.Embedder.Embed(ctx, topic)
	if err != nil {
		return err
	}
	entry := vectorindex.Entry{
		ID:         pointID,
		Topic:      topic,
		Department: dept.Name,
		Summary:    sum.Description,
		Source:     upload.FilePath,
		Date:       day,
	}
	if err := o.deps.Index.Upsert(ctx, entry, tvec); err != nil {
		return err
	}

	row := &entity.SummarizedContent{
		Title:       sum.Title,
		Description: sum.Description,
		UploadID:    &upload.ID,
		Department:  dept.Name,
		RelatedTags: tags,
		VectorID:    pointID,
	}
	if _, err := o.deps.Summaries.Insert(ctx, row); err != nil {
		log.Error("pipeline.consistency.window", "vector_id", pointID,
			"topic", topic, "department", dept.Name, "error", err)
		return err
	}
	log.Info("pipeline.summary.stored", "topic", topic, "department", dept.Name,
		"tags", len(tags), "vector_id", pointID)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, jobID uuid.UUID, lossy bool) {
	state := constants.JobStateFinished
	if lossy {
		state = constants.JobStatePartial
	}
	if err := o.deps.Jobs.Complete(ctx, jobID, state); err != nil {
		// Already-terminal is possible when a run is retried; anything else is real.
		if !common.IsValidation(err) && !common.IsNotFound(err) {
			log.Error("pipeline.job.complete_failed", "state", state, "error", err)
			return
		}
		log.Warn("pipeline.job.already_terminal", "state", state, "error", err)
		return
	}
	log.Info("pipeline.job.completed", "state", state)
}
