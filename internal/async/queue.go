package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one queued pipeline run.
type Job struct {
	JobID       uuid.UUID
	UploadID    uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
