package repository

import (
	"context"
	"errors"
	"fmt"
	"go-gin-trip-booking/internal/model"
	apperrors "go-gin-trip-booking/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.File, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, file *model.File) (*model.File, error)
}

type FileRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewFileRepository(pool *pgxpool.Pool) FileRepository {
	return &FileRepositoryImpl{
		pool: pool,
	}
}

func (r *FileRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, file *model.File) (*model.File, error) {
	query := `
		INSERT INTO files (path, owner_id, is_public, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query, file.Path, file.OwnerID, file.IsPublic, file.Category).
		Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		if violatesForeignKey(err, "files_owner_id_fkey") {
			return nil, apperrors.WithDetail(apperrors.ErrUnauthorized, "account %s does not exist", file.OwnerID)
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

func (r *FileRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	query := `
		SELECT id, path, owner_id, is_public, category, created_at
		FROM files
		WHERE id = $1
	`

	var file model.File
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Path,
		&file.OwnerID,
		&file.IsPublic,
		&file.Category,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrFileNotFound
		}
		return nil, err
	}
	return &file, nil
}
