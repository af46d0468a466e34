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

// UserRepository 使用者目錄；預約只讀取，不修改使用者
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)

	// Transaction methods
	FindByEmails(ctx context.Context, tx pgx.Tx, emails []string) ([]*model.User, error)
	FindByPhones(ctx context.Context, tx pgx.Tx, phones []string) ([]*model.User, error)
}

type UserRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &UserRepositoryImpl{
		pool: pool,
	}
}

const userColumns = `id, name, email, phone, role, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	query := `
		INSERT INTO users (name, email, phone, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	created, err := scanUser(r.pool.QueryRow(ctx, query, user.Name, user.Email, user.Phone, user.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.WithDetail(apperrors.ErrInvalidInput, "email already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *UserRepositoryImpl) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *UserRepositoryImpl) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.findOne(ctx, `phone = $1 ORDER BY created_at ASC LIMIT 1`, phone)
}

func (r *UserRepositoryImpl) findMany(ctx context.Context, tx pgx.Tx, column string, values []string) ([]*model.User, error) {
	if len(values) == 0 {
		return nil, nil
	}

	rows, err := tx.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ANY($1) ORDER BY created_at ASC`, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*model.User, 0, len(values))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepositoryImpl) FindByEmails(ctx context.Context, tx pgx.Tx, emails []string) ([]*model.User, error) {
	return r.findMany(ctx, tx, "email", emails)
}

func (r *UserRepositoryImpl) FindByPhones(ctx context.Context, tx pgx.Tx, phones []string) ([]*model.User, error) {
	return r.findMany(ctx, tx, "phone", phones)
}
