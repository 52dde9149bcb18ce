// Package services contains server-side business logic. AuthService composes
// the password hasher, token signers, token store and account directory
// into the account flows.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/common"
	"github.com/dmitrijs2005/exposureshield/internal/logging"
	"github.com/dmitrijs2005/exposureshield/internal/server/auth"
	"github.com/dmitrijs2005/exposureshield/internal/server/config"
	"github.com/dmitrijs2005/exposureshield/internal/server/mailer"
	"github.com/dmitrijs2005/exposureshield/internal/server/models"
	"github.com/dmitrijs2005/exposureshield/internal/server/password"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/exposureshield/internal/server/repositories/users"
	"github.com/dmitrijs2005/exposureshield/internal/server/tokenstore"
	"github.com/samber/oops"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is returned by Register and Login.
type Session struct {
	TokenPair
	User *models.User
}

// AuthService implements register, login, refresh, logout, profile lookup,
// email verification and password reset.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *password.Hasher
	access      *auth.Signer
	refresh     *auth.Signer
	tokens      *tokenstore.Store
	dispatcher  *mailer.Dispatcher
	log         logging.Logger

	verificationTTL time.Duration
	resetTTL        time.Duration
	resendInterval  time.Duration
	appBaseURL      string

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the service. db may be nil for the memory backend.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	tokens *tokenstore.Store,
	hasher *password.Hasher,
	dispatcher *mailer.Dispatcher,
	log logging.Logger,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		db:              db,
		repomanager:     m,
		hasher:          hasher,
		access:          auth.NewSigner(cfg.SecretKey, cfg.AccessTokenValidityDuration, auth.TypeAccess),
		refresh:         auth.NewSigner(cfg.RefreshSecretKey, cfg.RefreshTokenValidityDuration, auth.TypeRefresh),
		tokens:          tokens,
		dispatcher:      dispatcher,
		log:             log,
		verificationTTL: cfg.VerificationTokenValidityDuration,
		resetTTL:        cfg.ResetTokenValidityDuration,
		resendInterval:  cfg.ResendVerificationInterval,
		appBaseURL:      cfg.AppBaseURL,
	}
}

func (s *AuthService) users() users.Repository {
	return s.repomanager.Users(s.db)
}

// Register creates an account and signs the user in. The verification email
// is sent in the background and cannot fail the registration.
func (s *AuthService) Register(ctx context.Context, email, pw, name string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, invalid("Invalid email format")
	}
	if passwordLen(pw) < MinRegisterPasswordLen {
		return nil, invalid(fmt.Sprintf("Password must be at least %d characters", MinRegisterPasswordLen))
	}

	// Nothing is persisted unless the session can be signed afterwards.
	if err := s.signersConfigured(); err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "CheckSigners").Wrap(err)
	}

	repo := s.users()
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "Hash").Wrap(err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultName(email)
	}

	user, err := repo.Create(ctx, &models.User{Email: email, Name: name, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "Create").Wrap(err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "IssueTokens").Wrap(err)
	}

	s.sendVerification(ctx, user)
	s.log.Info(ctx, "user registered", "user_id", user.ID)

	return &Session{TokenPair: *pair, User: user}, nil
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials. Passwords stored in an older format are re-hashed;
// a failed upgrade is logged and does not fail the login.
func (s *AuthService) Login(ctx context.Context, email, pw string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || pw == "" {
		return nil, invalid("Email and password are required")
	}

	repo := s.users()
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(pw, s.timingHash())
			return nil, ErrInvalidCredentials
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	if !s.hasher.Verify(pw, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, repo, user, pw)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "IssueTokens").Wrap(err)
	}

	return &Session{TokenPair: *pair, User: user}, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, repo users.Repository, user *models.User, pw string) {
	from := password.DetectFormat(user.PasswordHash)

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	updated, err := repo.Update(ctx, user.ID, models.UserPatch{PasswordHash: &hash})
	if err != nil {
		s.log.Warn(ctx, "password upgrade not saved", "user_id", user.ID, "error", err)
		return
	}

	*user = *updated
	s.log.Info(ctx, "password hash upgraded", "user_id", user.ID, "from", string(from))
}

// timingHash returns a throwaway hash so a login for an unknown email costs
// about as much as one with a wrong password.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("exposureshield-timing-guard")
	})
	return s.dummyHash
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed, so each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, invalid("Refresh token is required")
	}

	claims, err := s.refresh.Parse(refreshToken)
	if err != nil {
		return nil, s.tokenError("AUTH_REFRESH_FAILED", err)
	}

	subjectID, ok, err := s.tokens.Consume(ctx, models.PurposeRefresh, refreshToken)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "Consume").Wrap(err)
	}
	if !ok || subjectID != claims.UserID() {
		return nil, ErrInvalidToken
	}

	user, err := s.users().GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "GetByID").Wrap(err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "IssueTokens").Wrap(err)
	}
	return pair, nil
}

// Logout revokes refreshToken. It always succeeds from the caller's view.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if err := s.tokens.Revoke(ctx, models.PurposeRefresh, strings.TrimSpace(refreshToken)); err != nil {
		s.log.Warn(ctx, "refresh token revoke failed", "error", err)
	}
}

// Me returns the user the access token was issued to.
func (s *AuthService) Me(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.access.Parse(accessToken)
	if err != nil {
		return nil, s.tokenError("AUTH_ME_FAILED", err)
	}

	user, err := s.users().GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, oops.Code("AUTH_ME_FAILED").With("operation", "GetByID").Wrap(err)
	}
	return user, nil
}

// VerifyEmail marks the account verified. Verifying twice succeeds.
func (s *AuthService) VerifyEmail(ctx context.Context, token, email string) error {
	email = models.NormalizeEmail(email)
	token = strings.TrimSpace(token)
	if token == "" || email == "" {
		return invalid("Token and email are required")
	}

	repo := s.users()
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "GetByEmail").Wrap(err)
	}
	if user.EmailVerified {
		return nil
	}

	// A token presented with someone else's email is rejected without
	// being spent.
	subjectID, ok, err := s.tokens.Lookup(ctx, models.PurposeEmailVerify, token)
	if err != nil {
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "Lookup").Wrap(err)
	}
	if !ok || subjectID != user.ID {
		return invalid(MsgInvalidToken)
	}

	subjectID, ok, err = s.tokens.Consume(ctx, models.PurposeEmailVerify, token)
	if err != nil {
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "Consume").Wrap(err)
	}
	if !ok || subjectID != user.ID {
		return invalid(MsgInvalidToken)
	}

	verified := true
	if _, err := repo.Update(ctx, user.ID, models.UserPatch{EmailVerified: &verified}); err != nil {
		return oops.Code("AUTH_VERIFY_EMAIL_FAILED").With("operation", "Update").Wrap(err)
	}

	s.log.Info(ctx, "email verified", "user_id", user.ID)
	return nil
}

// ResendVerification sends a fresh verification email to an existing
// unverified account, at most once per resend interval. The outcome is the
// same whether or not one exists.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}

	user, err := s.users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return oops.Code("AUTH_RESEND_VERIFICATION_FAILED").With("operation", "GetByEmail").Wrap(err)
	}
	if user.EmailVerified {
		return nil
	}

	acquired, err := s.tokens.Acquire(ctx, "resend-verification:"+user.ID, s.resendInterval)
	if err != nil {
		s.log.Error(ctx, "resend throttle unavailable", "user_id", user.ID, "error", err)
		return nil
	}
	if !acquired {
		s.log.Debug(ctx, "verification resend throttled", "user_id", user.ID)
		return nil
	}

	s.sendVerification(ctx, user)
	return nil
}

// RequestPasswordReset emails a reset link when the account exists. The
// outcome is the same whether or not one exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}

	user, err := s.users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	// Past this point the account is known to exist; failures stay in the logs.
	token, err := s.tokens.Create(ctx, models.PurposePasswordReset, user.ID, s.resetTTL)
	if err != nil {
		s.log.Error(ctx, "reset token not created", "user_id", user.ID, "error", err)
		return nil
	}
	s.dispatcher.Dispatch(ctx, mailer.PasswordResetMessage(s.appBaseURL, user.Email, token, s.resetTTL))
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" || confirmPassword == "" {
		return invalid("Token, newPassword and confirmPassword are required")
	}
	if newPassword != confirmPassword {
		return invalid("Passwords do not match")
	}
	if passwordLen(newPassword) < MinResetPasswordLen {
		return invalid(fmt.Sprintf("Password must be at least %d characters", MinResetPasswordLen))
	}

	userID, ok, err := s.tokens.Consume(ctx, models.PurposePasswordReset, token)
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "Consume").Wrap(err)
	}
	if !ok {
		return invalid(MsgInvalidToken)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "Hash").Wrap(err)
	}

	if _, err := s.users().Update(ctx, userID, models.UserPatch{PasswordHash: &hash}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return invalid(MsgInvalidToken)
		}
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").With("operation", "Update").Wrap(err)
	}

	s.log.Info(ctx, "password reset", "user_id", userID)
	return nil
}

func (s *AuthService) signersConfigured() error {
	if err := s.access.Configured(); err != nil {
		return err
	}
	return s.refresh.Configured()
}

// issueTokens signs an access and a refresh token and records the refresh
// token in the store.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.access.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.refresh.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Put(ctx, models.PurposeRefresh, refresh, user.ID, s.refresh.TTL()); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// tokenError keeps configuration failures intact and folds every other
// verification failure into ErrInvalidToken.
func (s *AuthService) tokenError(code string, err error) error {
	if errors.Is(err, common.ErrorConfiguration) {
		return oops.Code(code).With("operation", "VerifyToken").Wrap(err)
	}
	return ErrInvalidToken
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	token, err := s.tokens.Create(ctx, models.PurposeEmailVerify, user.ID, s.verificationTTL)
	if err != nil {
		s.log.Error(ctx, "verification token not created", "user_id", user.ID, "error", err)
		return
	}
	s.dispatcher.Dispatch(ctx, mailer.VerificationMessage(s.appBaseURL, user.Email, token, s.verificationTTL))
}
