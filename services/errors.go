// services/errors.go
package services

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrPurchaseFailed        = errors.New("purchase failed")
	ErrReferralNotFound      = errors.New("referral not found")
	ErrCreditsAlreadyAwarded = errors.New("credits already awarded for this referral")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidResetToken     = errors.New("invalid or expired reset token")
)

// InputError names the field that failed validation. It matches
// ErrInvalidInput under errors.Is.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalidInput(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
