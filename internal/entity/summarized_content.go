package entity

import (
	"time"

	"github.com/google/uuid"
)

// SummarizedContent is a department-scoped summary of one topic.
// Rows are immutable after creation. VectorID carries the semantic-index point
// id so the reconciliation pass can match the two stores.
type SummarizedContent struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UploadID    *uuid.UUID `json:"upload_id,omitempty"`
	Department  string     `json:"department"`
	RelatedTags []string   `json:"related_tags,omitempty"`
	VectorID    string     `json:"vector_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
