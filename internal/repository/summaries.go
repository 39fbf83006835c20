package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type SummarizedContentRepository interface {
	// Insert persists one summarization result; rows are immutable afterwards.
	// Empty title and description are valid: a department may have nothing
	// relevant in the source text and still get a row. Related tags are stored
	// as a JSON array so tags containing delimiters survive the round-trip.
	Insert(ctx context.Context, sc *entity.SummarizedContent) (*entity.SummarizedContent, error)
	ListByDepartment(ctx context.Context, department string) ([]*entity.SummarizedContent, error)
	ListAll(ctx context.Context) ([]*entity.SummarizedContent, error)
}

type summarizedContentRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSummarizedContentRepository(db *DB, logger *slog.Logger) SummarizedContentRepository {
	return &summarizedContentRepository{db: db, logger: logger}
}

func (r *summarizedContentRepository) Insert(ctx context.Context, sc *entity.SummarizedContent) (*entity.SummarizedContent, error) {
	out := *sc
	out.ID = uuid.New()
	out.CreatedAt = time.Now().UTC()

	var uploadID sql.NullString
	if sc.UploadID != nil {
		uploadID = sql.NullString{String: sc.UploadID.String(), Valid: true}
	}

	tags := sc.RelatedTags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	out.RelatedTags = tags

	const q = `INSERT INTO summarized_contents
		(id, title, description, upload_id, department, related_tags, vector_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.SQL.ExecContext(ctx, r.db.rebind(q),
		out.ID.String(), sc.Title, sc.Description, uploadID, sc.Department,
		string(tagJSON), sc.VectorID, encodeTime(out.CreatedAt))
	if err != nil {
		r.logger.Error("failed to insert summarized content", "department", sc.Department, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *summarizedContentRepository) ListByDepartment(ctx context.Context, department string) ([]*entity.SummarizedContent, error) {
	const q = `SELECT id, title, description, upload_id, department, related_tags, vector_id, created_at
		FROM summarized_contents WHERE department = ? ORDER BY created_at`
	return r.list(ctx, q, department)
}

func (r *summarizedContentRepository) ListAll(ctx context.Context) ([]*entity.SummarizedContent, error) {
	const q = `SELECT id, title, description, upload_id, department, related_tags, vector_id, created_at
		FROM summarized_contents ORDER BY created_at`
	return r.list(ctx, q)
}

func (r *summarizedContentRepository) list(ctx context.Context, q string, args ...any) ([]*entity.SummarizedContent, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list summarized contents", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.SummarizedContent
	for rows.Next() {
		var id, tags, createdAt string
		var uploadID sql.NullString
		sc := &entity.SummarizedContent{}
		if err := rows.Scan(&id, &sc.Title, &sc.Description, &uploadID, &sc.Department, &tags, &sc.VectorID, &createdAt); err != nil {
			return nil, err
		}
		if sc.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if uploadID.Valid {
			uid, err := uuid.Parse(uploadID.String)
			if err != nil {
				return nil, err
			}
			sc.UploadID = &uid
		}
		if tags != "" {
			if err := json.Unmarshal([]byte(tags), &sc.RelatedTags); err != nil {
				return nil, err
			}
			if len(sc.RelatedTags) == 0 {
				sc.RelatedTags = nil
			}
		}
		sc.CreatedAt = decodeTime(createdAt)
		out = append(out, sc)
	}
	return out, rows.Err()
}
