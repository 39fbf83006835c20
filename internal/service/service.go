package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/repository"
)

// Service is the boundary the transport layer talks to. It owns validation
// and job bookkeeping; the heavy lifting happens in the queued pipeline.
type Service struct {
	users     repository.UserRepository
	jobs      repository.JobRepository
	uploads   repository.UploadRepository
	summaries repository.SummarizedContentRepository
	registry  *department.Registry
	queue     async.Queue
	logger    *slog.Logger
}

func NewService(
	users repository.UserRepository,
	jobs repository.JobRepository,
	uploads repository.UploadRepository,
	summaries repository.SummarizedContentRepository,
	registry *department.Registry,
	queue async.Queue,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		jobs:      jobs,
		uploads:   uploads,
		summaries: summaries,
		registry:  registry,
		queue:     queue,
		logger:    logger,
	}
}

// JobStatusResult is the transport-facing view of a job.
type JobStatusResult struct {
	JobID uuid.UUID          `json:"job_id"`
	State constants.JobState `json:"state"`
}

// AcceptDocument registers a stored file for processing: validates the
// extension, creates a PENDING job, upserts the upload row and enqueues the
// pipeline run. The file must already be on disk at filePath.
func (s *Service) AcceptDocument(ctx context.Context, filePath string, userID uuid.UUID) (jobID, uploadID uuid.UUID, err error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return uuid.Nil, uuid.Nil, common.E(common.KindValidation, "service.accept", "file path is required", nil)
	}
	ext := constants.NormalizeExt(path)
	if !constants.IsAllowedExt(ext) {
		s.logger.Warn("service.accept.rejected_extension", "path", path, "ext", ext)
		return uuid.Nil, uuid.Nil, common.E(common.KindValidation, "service.accept",
			"unsupported file type: ."+ext, nil)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	job, err := s.jobs.Create(ctx, userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	upload, err := s.uploads.Upsert(ctx, job.ID, path)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, async.Job{
		JobID:       job.ID,
		UploadID:    upload.ID,
		SubmittedAt: time.Now(),
		TraceID:     ulid.Make().String(),
	}); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	s.logger.Info("service.accept.ok", "job_id", job.ID, "upload_id", upload.ID, "path", path)
	return job.ID, upload.ID, nil
}

// JobStatus reports the lifecycle state of one job.
func (s *Service) JobStatus(ctx context.Context, jobID uuid.UUID) (JobStatusResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return JobStatusResult{}, err
	}
	return JobStatusResult{JobID: job.ID, State: job.State}, nil
}

// FileByUpload resolves an upload to its stored path and media type. The file
// must still exist on disk.
func (s *Service) FileByUpload(ctx context.Context, uploadID uuid.UUID) (path, mediaType string, err error) {
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(upload.FilePath); err != nil {
		s.logger.Error("service.file.missing_on_disk", "upload_id", uploadID, "path", upload.FilePath, "error", err)
		return "", "", common.E(common.KindNotFound, "service.file", "stored file is gone", err)
	}
	return upload.FilePath, constants.MediaTypeForExt(constants.NormalizeExt(upload.FilePath)), nil
}

// SummariesByDepartment lists a department's summaries ordered by creation
// time. The department name is resolved through the registry first, so typos
// fail loudly instead of returning an empty list.
func (s *Service) SummariesByDepartment(ctx context.Context, departmentName string) ([]*entity.SummarizedContent, error) {
	dept, err := s.registry.Resolve(departmentName)
	if err != nil {
		return nil, err
	}
	return s.summaries.ListByDepartment(ctx, dept.Name)
}

// UpsertUser creates or refreshes an account keyed by email.
func (s *Service) UpsertUser(ctx context.Context, email, fullName string) (*entity.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, common.E(common.KindValidation, "service.user", "a valid email is required", nil)
	}
	return s.users.Upsert(ctx, email, strings.TrimSpace(fullName))
}
