package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type ExtractedContentRepository interface {
	// Upsert is keyed by (upload_id, page_number, exact text); re-running
	// recognition on an unchanged page returns the existing row instead of
	// duplicating it. The ON CONFLICT clause serializes concurrent writers on
	// the same key inside the database.
	Upsert(ctx context.Context, uploadID uuid.UUID, text string, pageNumber *int) (*entity.ExtractedContent, error)
	ListForUpload(ctx context.Context, uploadID uuid.UUID) ([]*entity.ExtractedContent, error)
	CountForUpload(ctx context.Context, uploadID uuid.UUID) (int, error)
}

type extractedContentRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExtractedContentRepository(db *DB, logger *slog.Logger) ExtractedContentRepository {
	return &extractedContentRepository{db: db, logger: logger}
}

// contentHash folds the page number into the digest so the unique constraint
// covers the full natural key even though page_number is nullable.
func contentHash(text string, pageNumber *int) string {
	page := -1
	if pageNumber != nil {
		page = *pageNumber
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%d\x00%s", page, text))
	return hex.EncodeToString(sum[:])
}

func (r *extractedContentRepository) Upsert(ctx context.Context, uploadID uuid.UUID, text string, pageNumber *int) (*entity.ExtractedContent, error) {
	const q = `INSERT INTO extracted_contents (id, upload_id, content, text_hash, page_number)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (upload_id, text_hash) DO UPDATE SET
			content = excluded.content, page_number = excluded.page_number
		RETURNING id`

	var page sql.NullInt64
	if pageNumber != nil {
		page = sql.NullInt64{Int64: int64(*pageNumber), Valid: true}
	}

	var id string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q),
		uuid.New().String(), uploadID.String(), text, contentHash(text, pageNumber), page).
		Scan(&id)
	if err != nil {
		r.logger.Error("failed to upsert extracted content", "upload_id", uploadID, "error", err)
		return nil, err
	}

	cid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &entity.ExtractedContent{
		ID:         cid,
		UploadID:   uploadID,
		Text:       text,
		PageNumber: pageNumber,
	}, nil
}

func (r *extractedContentRepository) ListForUpload(ctx context.Context, uploadID uuid.UUID) ([]*entity.ExtractedContent, error) {
	const q = `SELECT id, content, page_number FROM extracted_contents
		WHERE upload_id = ? ORDER BY page_number`

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), uploadID.String())
	if err != nil {
		r.logger.Error("failed to list extracted contents", "upload_id", uploadID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ExtractedContent
	for rows.Next() {
		var id string
		var page sql.NullInt64
		ec := &entity.ExtractedContent{UploadID: uploadID}
		if err := rows.Scan(&id, &ec.Text, &page); err != nil {
			return nil, err
		}
		if ec.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			ec.PageNumber = &p
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

func (r *extractedContentRepository) CountForUpload(ctx context.Context, uploadID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM extracted_contents WHERE upload_id = ?`

	var n int
	if err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), uploadID.String()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
