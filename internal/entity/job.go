package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
)

// Job represents one document-processing run for data transfer between layers.
type Job struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	State     constants.JobState `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
}
