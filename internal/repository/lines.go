package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type ActionableLineRepository interface {
	// Insert persists one classification result. Departments are stored as a
	// JSON array; nil becomes the empty array, never null.
	Insert(ctx context.Context, line *entity.ActionableLine) (*entity.ActionableLine, error)
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]*entity.ActionableLine, error)
	CountForContent(ctx context.Context, contentID uuid.UUID) (int, error)
}

type actionableLineRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewActionableLineRepository(db *DB, logger *slog.Logger) ActionableLineRepository {
	return &actionableLineRepository{db: db, logger: logger}
}

func (r *actionableLineRepository) Insert(ctx context.Context, line *entity.ActionableLine) (*entity.ActionableLine, error) {
	departments := line.Departments
	if departments == nil {
		departments = []string{}
	}
	deptJSON, err := json.Marshal(departments)
	if err != nil {
		return nil, err
	}

	out := *line
	out.ID = uuid.New()
	out.Departments = departments

	var jobID, contentID sql.NullString
	if line.JobID != nil {
		jobID = sql.NullString{String: line.JobID.String(), Valid: true}
	}
	if line.ContentID != nil {
		contentID = sql.NullString{String: line.ContentID.String(), Valid: true}
	}

	const q = `INSERT INTO actionable_lines (id, upload_id, job_id, content_id, paraphrased_line, departments)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.SQL.ExecContext(ctx, r.db.rebind(q),
		out.ID.String(), line.UploadID.String(), jobID, contentID, line.ParaphrasedLine, string(deptJSON))
	if err != nil {
		r.logger.Error("failed to insert actionable line", "upload_id", line.UploadID, "error", err)
		return nil, err
	}
	return &out, nil
}

func (r *actionableLineRepository) ListForJob(ctx context.Context, jobID uuid.UUID) ([]*entity.ActionableLine, error) {
	const q = `SELECT id, upload_id, content_id, paraphrased_line, departments
		FROM actionable_lines WHERE job_id = ?`

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), jobID.String())
	if err != nil {
		r.logger.Error("failed to list actionable lines", "job_id", jobID, "error", err)
		return nil, err
	}
	defer rows.Close()

	jid := jobID
	var out []*entity.ActionableLine
	for rows.Next() {
		var id, uploadID, deptJSON string
		var contentID sql.NullString
		line := &entity.ActionableLine{JobID: &jid}
		if err := rows.Scan(&id, &uploadID, &contentID, &line.ParaphrasedLine, &deptJSON); err != nil {
			return nil, err
		}
		if line.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if line.UploadID, err = uuid.Parse(uploadID); err != nil {
			return nil, err
		}
		if contentID.Valid {
			cid, err := uuid.Parse(contentID.String)
			if err != nil {
				return nil, err
			}
			line.ContentID = &cid
		}
		if err := json.Unmarshal([]byte(deptJSON), &line.Departments); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *actionableLineRepository) CountForContent(ctx context.Context, contentID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM actionable_lines WHERE content_id = ?`

	var n int
	if err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), contentID.String()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
