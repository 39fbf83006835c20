package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type UploadRepository interface {
	// Upsert is keyed by (job_id, file_path): re-accepting the same file for the
	// same job returns the existing row.
	Upsert(ctx context.Context, jobID uuid.UUID, filePath string) (*entity.Upload, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Upload, error)
}

type uploadRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewUploadRepository(db *DB, logger *slog.Logger) UploadRepository {
	return &uploadRepository{db: db, logger: logger}
}

func (r *uploadRepository) Upsert(ctx context.Context, jobID uuid.UUID, filePath string) (*entity.Upload, error) {
	if filePath == "" {
		return nil, common.E(common.KindValidation, "repository.uploads.upsert", "file path is required", nil)
	}

	const q = `INSERT INTO uploads (id, job_id, file_path, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (job_id, file_path) DO UPDATE SET file_path = excluded.file_path
		RETURNING id, created_at`

	now := time.Now().UTC()
	var id, createdAt string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q),
		uuid.New().String(), jobID.String(), filePath, encodeTime(now)).
		Scan(&id, &createdAt)
	if err != nil {
		r.logger.Error("failed to upsert upload", "job_id", jobID, "file_path", filePath, "error", err)
		return nil, err
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	jid := jobID
	return &entity.Upload{
		ID:        uid,
		JobID:     &jid,
		FilePath:  filePath,
		CreatedAt: decodeTime(createdAt),
	}, nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Upload, error) {
	const q = `SELECT job_id, file_path, created_at FROM uploads WHERE id = ?`

	var jobID sql.NullString
	var filePath, createdAt string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), id.String()).
		Scan(&jobID, &filePath, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.E(common.KindNotFound, "repository.uploads.get", "upload not found", nil)
	}
	if err != nil {
		r.logger.Error("failed to get upload", "upload_id", id, "error", err)
		return nil, err
	}

	up := &entity.Upload{ID: id, FilePath: filePath, CreatedAt: decodeTime(createdAt)}
	if jobID.Valid {
		jid, err := uuid.Parse(jobID.String)
		if err != nil {
			return nil, err
		}
		up.JobID = &jid
	}
	return up, nil
}
