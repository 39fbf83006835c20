package entity

import (
	"time"

	"github.com/google/uuid"
)

// Upload represents one stored source file tied to a job.
// JobID is nil while the upload precedes job linkage; once linked it is immutable.
type Upload struct {
	ID        uuid.UUID  `json:"id"`
	JobID     *uuid.UUID `json:"job_id,omitempty"`
	FilePath  string     `json:"file_path"`
	CreatedAt time.Time  `json:"created_at"`
}
