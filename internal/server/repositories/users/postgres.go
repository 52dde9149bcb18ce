package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/dbx"
	"github.com/dmitrijs2005/exposureshield/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, password_hash, email_verified, created_at, updated_at`

// PostgresRepository keeps users in the users table. Email uniqueness is
// enforced by the users_email_key index.
type PostgresRepository struct {
	db dbx.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository binds the repository to db (*sql.DB or *sql.Tx).
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	u.ID = uuid.NewString()
	u.Email = models.NormalizeEmail(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	query :=
		`INSERT INTO users (id, email, name, password_hash, email_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.PasswordHash, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &u, nil
}

// Update locks the row, merges patch and writes it back. When the repository
// is bound to a *sql.DB this happens in its own transaction; bound to a
// *sql.Tx it joins the caller's.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	var updated *models.User
	apply := func(ctx context.Context, tx dbx.DBTX) error {
		u, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		patch.Apply(u)
		u.UpdatedAt = time.Now().UTC()

		query :=
			`UPDATE users
			 SET email = $2, name = $3, password_hash = $4, email_verified = $5, updated_at = $6
			 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query,
			u.ID, u.Email, u.Name, u.PasswordHash, u.EmailVerified, u.UpdatedAt); err != nil {
			if dbx.IsUniqueViolation(err) {
				return common.ErrorConflict
			}
			return fmt.Errorf("db error: %w", err)
		}

		updated = u
		return nil
	}

	if err := dbx.Run(ctx, r.db, apply); err != nil {
		return nil, err
	}
	return updated, nil
}
