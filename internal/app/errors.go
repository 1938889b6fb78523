package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not
	// match. The message is shown to end users and should not enable account
	// enumeration.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrEmailAlreadyExists       = errors.New("email already registered")
	ErrEmailAndPasswordRequired = errors.New("email and password required")

	// ErrInvalidCurrentPassword is returned when a password change fails the
	// current-password re-check.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")

	ErrContentRequired = errors.New("content is required")
	ErrInvalidRole     = errors.New("invalid role")

	// ErrGenerationFailed wraps remote generation failures. The remote detail
	// is logged, not echoed to clients.
	ErrGenerationFailed = errors.New("failed to get response from AI")
)
