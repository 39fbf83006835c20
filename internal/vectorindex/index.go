package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one indexed topic summary. The logical identity is
// (date, topic, department); ID is derived from it so re-running the same
// document on the same day overwrites rather than duplicates.
type Entry struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Department string    `json:"department"`
	Summary    string    `json:"summary"`
	Source     string    `json:"source,omitempty"`
	Date       time.Time `json:"date"`
}

// Neighbor is a scored match from a similarity query.
type Neighbor struct {
	Entry Entry
	Score float32
}

// Index is the semantic store for topic summaries.
type Index interface {
	// EnsureCollection creates the backing collection when missing.
	EnsureCollection(ctx context.Context) error
	// Upsert writes the entry under its derived ID, overwriting any point
	// with the same logical identity.
	Upsert(ctx context.Context, e Entry, vector []float32) error
	// Query returns up to topK nearest neighbors, unfiltered by score;
	// thresholding is the caller's policy.
	Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error)
	// Delete removes the given points and verifies they are gone.
	Delete(ctx context.Context, ids []string) error
	// List scrolls all point IDs, for reconciliation against the relational rows.
	List(ctx context.Context) ([]string, error)
}

// Embedder turns text into a vector in the index's space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// entryNamespace salts the derived IDs so they cannot collide with UUIDs from
// other subsystems.
var entryNamespace = uuid.NameSpaceOID

// EntryID derives the point ID from the logical identity. Qdrant only accepts
// UUIDs or unsigned integers as point IDs, so the natural key is folded into a
// name-based UUID; the readable fields travel in the payload.
func EntryID(day time.Time, topic, dept string) string {
	name := fmt.Sprintf("%s|%s|%s", day.UTC().Format("2006-01-02"), topic, dept)
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}
