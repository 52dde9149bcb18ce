// Package users stores accounts. Emails are normalized with
// models.NormalizeEmail before every lookup and write.
package users

import (
	"context"

	"github.com/dmitrijs2005/exposureshield/internal/server/models"
)

// Repository is the account directory.
//
// GetByEmail and GetByID return common.ErrorNotFound for unknown users.
// Create assigns ID and timestamps and returns common.ErrorConflict when the
// email is taken. Update merges the non-nil fields of patch, bumps UpdatedAt
// and returns common.ErrorNotFound for an unknown id.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
}
