// Package tokenstore keeps single-use tokens (email verification, password
// reset, refresh) hashed in a kv.Store.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/server/models"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/kv"
)

// RawTokenSize is the number of random bytes in a generated token.
const RawTokenSize = 32

// Store issues and consumes single-use tokens.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// New creates a Store over backend.
func New(backend kv.Store) *Store {
	return &Store{kv: backend, now: time.Now}
}

// Key returns the storage key for raw. The raw token never appears in it.
func Key(purpose models.TokenPurpose, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "token:" + string(purpose) + ":" + hex.EncodeToString(sum[:])
}

// Create generates a random token for subjectID and stores its hash.
func (s *Store) Create(ctx context.Context, purpose models.TokenPurpose, subjectID string, ttl time.Duration) (string, error) {
	raw, err := common.MakeRandHexString(RawTokenSize)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.Put(ctx, purpose, raw, subjectID, ttl); err != nil {
		return "", err
	}
	return raw, nil
}

// Put stores a caller-supplied raw token.
func (s *Store) Put(ctx context.Context, purpose models.TokenPurpose, raw, subjectID string, ttl time.Duration) error {
	if raw == "" || subjectID == "" {
		return errors.New("tokenstore: empty token or subject")
	}
	if ttl <= 0 {
		return fmt.Errorf("tokenstore: non-positive ttl %s", ttl)
	}

	rec := models.Token{Purpose: purpose, SubjectID: subjectID, ExpiresAt: s.now().Add(ttl)}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.kv.Set(ctx, Key(purpose, raw), payload, ttl); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Consume deletes the record for raw and returns its subject. Unknown,
// expired and already used tokens give ok=false with a nil error; err is
// reserved for backend failures.
func (s *Store) Consume(ctx context.Context, purpose models.TokenPurpose, raw string) (subjectID string, ok bool, err error) {
	if raw == "" {
		return "", false, nil
	}

	payload, err := s.kv.GetDel(ctx, Key(purpose, raw))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("consume token: %w", err)
	}
	return s.decode(payload, purpose)
}

// Lookup is Consume without the delete. A later Consume is still needed to
// spend the token.
func (s *Store) Lookup(ctx context.Context, purpose models.TokenPurpose, raw string) (subjectID string, ok bool, err error) {
	if raw == "" {
		return "", false, nil
	}

	payload, err := s.kv.Get(ctx, Key(purpose, raw))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup token: %w", err)
	}
	return s.decode(payload, purpose)
}

func (s *Store) decode(payload []byte, purpose models.TokenPurpose) (string, bool, error) {
	var rec models.Token
	if err := json.Unmarshal(payload, &rec); err != nil {
		return "", false, fmt.Errorf("decode token: %w", err)
	}
	if rec.Purpose != purpose || rec.SubjectID == "" || rec.Expired(s.now()) {
		return "", false, nil
	}
	return rec.SubjectID, true, nil
}

// Acquire claims scope for ttl. It reports false while an earlier claim on
// the same scope is still live.
func (s *Store) Acquire(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	ok, err := s.kv.SetNX(ctx, "lock:"+scope, []byte(s.now().UTC().Format(time.RFC3339)), ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", scope, err)
	}
	return ok, nil
}

// Revoke deletes the record for raw if there is one.
func (s *Store) Revoke(ctx context.Context, purpose models.TokenPurpose, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, Key(purpose, raw)); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
