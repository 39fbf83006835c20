package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type JobRepository interface {
	// Create always inserts a fresh PENDING job; job creation is never an upsert.
	Create(ctx context.Context, userID uuid.UUID) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// Complete performs the single guarded terminal transition. It fails with
	// NotFound for an unknown id and mutates nothing; a second completion
	// attempt fails because the state is no longer PENDING.
	Complete(ctx context.Context, id uuid.UUID, state constants.JobState) error
}

type jobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	return &jobRepository{db: db, logger: logger}
}

func (r *jobRepository) Create(ctx context.Context, userID uuid.UUID) (*entity.Job, error) {
	job := &entity.Job{
		ID:        uuid.New(),
		UserID:    userID,
		State:     constants.JobStatePending,
		CreatedAt: time.Now().UTC(),
	}

	const q = `INSERT INTO jobs (id, user_id, state, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(q),
		job.ID.String(), userID.String(), string(job.State), encodeTime(job.CreatedAt))
	if err != nil {
		r.logger.Error("failed to create job", "user_id", userID, "error", err)
		return nil, err
	}
	r.logger.Info("job created", "job_id", job.ID, "user_id", userID)
	return job, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `SELECT user_id, state, created_at FROM jobs WHERE id = ?`

	var userID, state, createdAt string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), id.String()).
		Scan(&userID, &state, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.E(common.KindNotFound, "repository.jobs.get", "job not found", nil)
	}
	if err != nil {
		r.logger.Error("failed to get job", "job_id", id, "error", err)
		return nil, err
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	return &entity.Job{
		ID:        id,
		UserID:    uid,
		State:     constants.JobState(state),
		CreatedAt: decodeTime(createdAt),
	}, nil
}

func (r *jobRepository) Complete(ctx context.Context, id uuid.UUID, state constants.JobState) error {
	if !state.Terminal() {
		return common.E(common.KindValidation, "repository.jobs.complete",
			"not a terminal state: "+string(state), nil)
	}

	const q = `UPDATE jobs SET state = ? WHERE id = ? AND state = ?`
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(q),
		string(state), id.String(), string(constants.JobStatePending))
	if err != nil {
		r.logger.Error("failed to complete job", "job_id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		r.logger.Info("job completed", "job_id", id, "state", state)
		return nil
	}

	// Nothing updated: either the job does not exist or it is already terminal.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return common.E(common.KindValidation, "repository.jobs.complete", "job already terminal", nil)
}
