package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
)

func setupUserMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresUserRepository(db), mock
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock := setupUserMock(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("u1", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	u, err := repo.CreateUser(context.Background(), "u1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, created, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := setupUserMock(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("u2", "alice@example.com").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	_, err := repo.CreateUser(context.Background(), "u2", "alice@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCreateUser_Error(t *testing.T) {
	repo, mock := setupUserMock(t)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("conn reset"))

	_, err := repo.CreateUser(context.Background(), "u3", "alice@example.com")
	assert.ErrorContains(t, err, "create user")
	assert.NotErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestGetUser(t *testing.T) {
	repo, mock := setupUserMock(t)
	created := time.Now().UTC()

	mock.ExpectQuery("SELECT id, email, created_at FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at"}).AddRow("u1", "a@b.c", created))
	mock.ExpectQuery("SELECT id, email, created_at FROM users WHERE email").
		WithArgs("missing@b.c").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, email, created_at FROM users WHERE id").
		WithArgs("u2").
		WillReturnError(errors.New("boom"))

	u, err := repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", u.Email)

	_, err = repo.GetByEmail(context.Background(), "missing@b.c")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.GetByID(context.Background(), "u2")
	assert.ErrorContains(t, err, "get user")

	assert.NoError(t, mock.ExpectationsWereMet())
}
