package services

import (
	"fmt"

	"github.com/dmitrijs2005/exposureshield/internal/common"
)

// Messages shown to clients. Credential and token failures share one text
// each so responses do not reveal which check failed.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgInvalidToken       = "Invalid or expired token"
	MsgResetRequested     = "If an account with that email exists, a password reset link has been sent."
	MsgVerificationQueued = "If that account exists and is not verified yet, a verification email has been sent."
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: %s", common.ErrorUnauthorized, MsgInvalidCredentials)
	ErrInvalidToken       = fmt.Errorf("%w: %s", common.ErrorUnauthorized, MsgInvalidToken)
)

// ValidationError is a client mistake. Message is safe to return as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
