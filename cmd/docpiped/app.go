package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/export"
	"github.com/joseph-ayodele/docpipe/internal/llm"
	"github.com/joseph-ayodele/docpipe/internal/ocr"
	"github.com/joseph-ayodele/docpipe/internal/pipeline"
	"github.com/joseph-ayodele/docpipe/internal/repository"
	"github.com/joseph-ayodele/docpipe/internal/service"
	"github.com/joseph-ayodele/docpipe/internal/vectorindex"
)

// app wires every component the subcommands share. The queue is injected by
// the caller: serve uses the worker pool, process runs inline.
type app struct {
	cfg    *common.Config
	logger *slog.Logger

	db       *repository.DB
	registry *department.Registry

	users     repository.UserRepository
	jobs      repository.JobRepository
	uploads   repository.UploadRepository
	contents  repository.ExtractedContentRepository
	lines     repository.ActionableLineRepository
	summaries repository.SummarizedContentRepository

	index        *vectorindex.QdrantIndex
	embedder     *vectorindex.OpenAIEmbedder
	orchestrator *pipeline.Orchestrator
	exporter     *export.Service
}

func buildApp(ctx context.Context) (*app, error) {
	logger := slog.Default()
	cfg := common.LoadConfig()

	var db *repository.DB
	var err error
	if sqlitePath != "" {
		db, err = repository.OpenSQLite(ctx, sqlitePath, logger)
	} else {
		if verr := cfg.Validate(); verr != nil {
			return nil, verr
		}
		db, err = repository.Open(ctx, cfg.Database, logger)
	}
	if err != nil {
		return nil, err
	}

	registry, err := department.Load(cfg.DepartmentsFile)
	if err != nil {
		db.Close(logger)
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		registry:  registry,
		users:     repository.NewUserRepository(db, logger),
		jobs:      repository.NewJobRepository(db, logger),
		uploads:   repository.NewUploadRepository(db, logger),
		contents:  repository.NewExtractedContentRepository(db, logger),
		lines:     repository.NewActionableLineRepository(db, logger),
		summaries: repository.NewSummarizedContentRepository(db, logger),
	}

	a.index = vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
		URL:        cfg.Index.QdrantURL,
		APIKey:     cfg.Index.QdrantAPIKey,
		Collection: cfg.Index.Collection,
		Dimension:  cfg.Index.Dimension,
		Timeout:    cfg.Index.Timeout,
	}, logger)
	a.embedder = vectorindex.NewOpenAIEmbedder(vectorindex.EmbedConfig{
		BaseURL:    cfg.Index.EmbedBaseURL,
		APIKey:     cfg.Index.EmbedAPIKey,
		Model:      cfg.Index.EmbedModel,
		MaxRetries: cfg.LLM.MaxRetries,
	}, logger)

	engine := ocr.NewEngine(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		Workers:       cfg.OCR.PageWorkers,
	}, logger)

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)

	a.orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		TopK:           cfg.Index.TopK,
		ScoreThreshold: cfg.Index.ScoreThreshold,
		TopicWorkers:   cfg.Pipeline.TopicWorkers,
	}, pipeline.Deps{
		Recognizer: engine,
		Classifier: llm.NewClassifier(client, registry, cfg.LLM.ClassifierModel),
		Summarizer: llm.NewSummarizer(client, cfg.LLM.SummarizerModel),
		Embedder:   a.embedder,
		Index:      a.index,
		Registry:   registry,
		Jobs:       a.jobs,
		Uploads:    a.uploads,
		Contents:   a.contents,
		Lines:      a.lines,
		Summaries:  a.summaries,
	}, logger)

	a.exporter = export.NewService(a.summaries, a.uploads, registry, logger)
	return a, nil
}

func (a *app) service(q async.Queue) *service.Service {
	return service.NewService(a.users, a.jobs, a.uploads, a.summaries, a.registry, q, a.logger)
}

func (a *app) close() {
	a.db.Close(a.logger)
}

func (a *app) healthCheck(ctx context.Context) error {
	return repository.HealthCheck(ctx, a.db, 5*time.Second, a.logger)
}

// inlineQueue runs each document synchronously on Enqueue; the process
// subcommand uses it so the command blocks until the pipeline is done.
type inlineQueue struct {
	orch *pipeline.Orchestrator
}

func (q inlineQueue) Enqueue(ctx context.Context, job async.Job) error {
	return q.orch.ProcessDocument(ctx, job.JobID, job.UploadID)
}

func (q inlineQueue) Shutdown(context.Context) {}
