package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Create checks and inserts
// under one lock, so uniqueness holds within a single instance only.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	u := *user
	u.Email = models.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return nil, common.ErrorConflict
	}

	u.ID = uuid.NewString()
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	stored := u
	r.byID[u.ID] = &stored
	r.byEmail[u.Email] = u.ID
	return &u, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	u := *cur
	patch.Apply(&u)
	if u.Email != cur.Email {
		if _, taken := r.byEmail[u.Email]; taken {
			return nil, common.ErrorConflict
		}
		delete(r.byEmail, cur.Email)
		r.byEmail[u.Email] = id
	}
	u.UpdatedAt = time.Now().UTC()
	if !u.UpdatedAt.After(cur.UpdatedAt) {
		u.UpdatedAt = cur.UpdatedAt.Add(time.Nanosecond)
	}

	*cur = u
	return &u, nil
}
