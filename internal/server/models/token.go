package models

import "time"

// TokenPurpose scopes a single-use token to one action.
type TokenPurpose string

const (
	PurposeEmailVerify   TokenPurpose = "email-verify"
	PurposePasswordReset TokenPurpose = "password-reset"
	PurposeRefresh       TokenPurpose = "refresh"
)

// Token is the stored form of a single-use token. The raw value is never kept;
// records are addressed by its sha256.
type Token struct {
	Purpose   TokenPurpose `json:"purpose"`
	SubjectID string       `json:"subject_id"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
