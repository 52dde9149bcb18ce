package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "6f1c2d3e-4b5a-4c6d-8e7f-0a1b2c3d4e5f"

var columns = []string{"id", "email", "name", "password_hash", "email_verified", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func userRow(email string, verified bool) *sqlmock.Rows {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(columns).AddRow(testID, email, "alice", "$scrypt$hash", verified, ts, ts)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*name,\s*password_hash,\s*email_verified,\s*created_at,\s*updated_at\)`).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "alice", "$scrypt$hash", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	in := &models.User{Email: " Alice@Example.COM ", Name: "alice", PasswordHash: "$scrypt$hash"}
	got, err := repo.Create(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	assert.Empty(t, in.ID, "input must not be mutated")
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b.com", PasswordHash: "h"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
	assert.NotErrorIs(t, err, common.ErrorConflict)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(userRow("alice@example.com", true))

	got, err := repo.GetByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, testID, got.ID)
	assert.Equal(t, "$scrypt$hash", got.PasswordHash)
	assert.True(t, got.EmailVerified)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(testID).
		WillReturnRows(userRow("alice@example.com", false))

	got, err := repo.GetByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGetByID_NotAUUID(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), testID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`).
		WithArgs(testID).
		WillReturnRows(userRow("alice@example.com", false))
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET`).
		WithArgs(testID, "alice@example.com", "alice", "$scrypt$new", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	hash, verified := "$scrypt$new", true
	got, err := repo.Update(context.Background(), testID, models.UserPatch{PasswordHash: &hash, EmailVerified: &verified})
	require.NoError(t, err)
	assert.Equal(t, "$scrypt$new", got.PasswordHash)
	assert.True(t, got.EmailVerified)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUpdate_NotFoundRollsBack(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs(testID).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	verified := true
	_, err := repo.Update(context.Background(), testID, models.UserPatch{EmailVerified: &verified})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_EmailTaken(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs(testID).WillReturnRows(userRow("alice@example.com", false))
	mock.ExpectExec(`UPDATE\s+users`).WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	email := "bob@example.com"
	_, err := repo.Update(context.Background(), testID, models.UserPatch{Email: &email})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestUpdate_InsideCallerTx(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR\s+UPDATE`).WithArgs(testID).WillReturnRows(userRow("alice@example.com", false))
	mock.ExpectExec(`UPDATE\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	name := "Alice"
	got, err := NewPostgresRepository(tx).Update(context.Background(), testID, models.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
