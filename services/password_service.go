// services/password_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/HSouheill/referral_backend/repositories"
	"github.com/HSouheill/referral_backend/security"
	"github.com/HSouheill/referral_backend/utils"
)

// ForgotPasswordMessage is returned whether or not the email is registered.
const ForgotPasswordMessage = "If an account exists with this email, a password reset link has been sent"

// PasswordService runs the reset-token flow. Tokens are stored hashed and
// consumed on use.
type PasswordService struct {
	store    repositories.Store
	tokens   repositories.ResetTokenStore
	notifier *Notifier
	ttl      time.Duration
	options
}

func NewPasswordService(store repositories.Store, tokens repositories.ResetTokenStore, notifier *Notifier, ttl time.Duration, opts ...Option) *PasswordService {
	return &PasswordService{store: store, tokens: tokens, notifier: notifier, ttl: ttl, options: buildOptions(opts)}
}

// ForgotPassword mails a reset link when the email belongs to an account and
// silently does nothing otherwise.
func (s *PasswordService) ForgotPassword(ctx context.Context, email string) error {
	email, err := utils.SanitizeEmail(email)
	if err != nil {
		return invalidInput("email", "must be a valid email")
	}

	account, err := s.store.Accounts().FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	hash := security.HashToken(token)
	if err := s.tokens.Save(ctx, hash, account.ID, s.ttl); err != nil {
		return err
	}

	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.SendPasswordReset(ctx, account.Email, token); err != nil {
		_ = s.tokens.Delete(ctx, hash)
		return fmt.Errorf("send reset email: %w", err)
	}
	log.WithField("account_id", account.ID.Hex()).Info("Password reset email sent")
	return nil
}

// VerifyResetToken returns the email the token was issued for.
func (s *PasswordService) VerifyResetToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidResetToken
	}
	id, err := s.tokens.Lookup(ctx, security.HashToken(token))
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("lookup reset token: %w", err)
	}
	account, err := s.store.Accounts().FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("find account: %w", err)
	}
	return account.Email, nil
}

// ResetPassword sets a new password and consumes the token.
func (s *PasswordService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < utils.MinPasswordLength {
		return invalidInput("password", fmt.Sprintf("must be at least %d characters", utils.MinPasswordLength))
	}
	if token == "" {
		return ErrInvalidResetToken
	}

	hash := security.HashToken(token)
	id, err := s.tokens.Lookup(ctx, hash)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Accounts().UpdatePassword(ctx, id, passwordHash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.tokens.Delete(ctx, hash); err != nil {
		log.WithError(err).Warn("Reset token not removed after use")
	}
	log.WithField("account_id", id.Hex()).Info("Password reset")
	return nil
}
