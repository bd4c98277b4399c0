// Package repository provides the PostgreSQL persistence for users and
// wishlist records, plus an optional Redis cache in front of the latter.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/models"
)

const uniqueViolation = "23505"

// PostgresUserRepository stores registered users.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// CreateUser registers email under id.
// A second registration of the same email yields an AlreadyExists error.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, id, email string) (*models.User, error) {
	u := &models.User{ID: id, Email: email}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (id, email) VALUES ($1, $2) RETURNING created_at`,
		u.ID, email,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, apperrors.AlreadyExists("user", "email", email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns the user with id or a NotFound error.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, email, created_at FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user registered with email or a NotFound error.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, email, created_at FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query, arg string) (*models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
