// Package store owns the persisted user records and every state transition on
// them: registration, credential checks, and the verification-code lifecycle.
// Callers match the sentinel errors below with errors.Is; validation errors
// wrap ErrInvalidInput with a user-facing detail message.
package store

import "errors"

var (
	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")

	// Login errors. A missing record and a wrong password both map to
	// ErrInvalidCredentials so the response never reveals which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")

	// Registration errors.
	ErrAlreadyRegistered = errors.New("email already registered")

	// Verification-code errors.
	ErrInvalidCode          = errors.New("invalid verification code or email")
	ErrCodeExpired          = errors.New("verification code has expired")
	ErrNotFound             = errors.New("email not found")
	ErrVerificationDisabled = errors.New("email verification is disabled")

	// Storage and other unexpected failures, detail logged server-side only.
	ErrInternal = errors.New("internal error")
)
