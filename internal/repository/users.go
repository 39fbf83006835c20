package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type UserRepository interface {
	// Upsert creates the user on first reference by email, or refreshes the
	// display name on subsequent calls. Users are never deleted by the pipeline.
	Upsert(ctx context.Context, email, fullName string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type userRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewUserRepository(db *DB, logger *slog.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) Upsert(ctx context.Context, email, fullName string) (*entity.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, common.E(common.KindValidation, "repository.users.upsert", "email is required", nil)
	}

	const q = `INSERT INTO users (id, email, full_name) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			full_name = CASE WHEN excluded.full_name <> '' THEN excluded.full_name ELSE users.full_name END
		RETURNING id, email, full_name`

	var u entity.User
	var id string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), uuid.New().String(), email, fullName).
		Scan(&id, &u.Email, &u.FullName)
	if err != nil {
		r.logger.Error("failed to upsert user", "email", email, "error", err)
		return nil, err
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	const q = `SELECT id, email, full_name FROM users WHERE id = ?`

	var u entity.User
	var rawID string
	err := r.db.SQL.QueryRowContext(ctx, r.db.rebind(q), id.String()).
		Scan(&rawID, &u.Email, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.E(common.KindNotFound, "repository.users.get", "user not found", nil)
	}
	if err != nil {
		r.logger.Error("failed to get user", "user_id", id, "error", err)
		return nil, err
	}
	u.ID = id
	return &u, nil
}
