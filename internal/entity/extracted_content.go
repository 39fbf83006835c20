package entity

import "github.com/google/uuid"

// ExtractedContent is the recognition output for one page of one upload.
// Rows are unique per (upload, page, exact text); re-running recognition on an
// unchanged page upserts instead of duplicating.
type ExtractedContent struct {
	ID         uuid.UUID `json:"id"`
	UploadID   uuid.UUID `json:"upload_id"`
	Text       string    `json:"text"`
	PageNumber *int      `json:"page_number,omitempty"`
}
