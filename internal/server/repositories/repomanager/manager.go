// Package repomanager vends repository implementations for the configured
// backend and runs schema migrations where the backend needs them.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/exposureshield/internal/dbx"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

// MemoryRepositoryManager serves process-local repositories. The db
// arguments are ignored.
type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

// RunMigrations is a no-op for the memory backend.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

// Users returns the shared in-memory directory.
func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}
