package entity

import "github.com/google/uuid"

// ActionableLine is a classified topic extracted from a page.
// Departments may be empty but is never nil once persisted.
type ActionableLine struct {
	ID              uuid.UUID  `json:"id"`
	UploadID        uuid.UUID  `json:"upload_id"`
	JobID           *uuid.UUID `json:"job_id,omitempty"`
	ContentID       *uuid.UUID `json:"content_id,omitempty"`
	ParaphrasedLine string     `json:"paraphrased_line"`
	Departments     []string   `json:"departments"`
}
