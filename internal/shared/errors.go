package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOTP indicates OTP verification failure.
	ErrInvalidOTP = errors.New("invalid or expired otp")
	// ErrTooManyAttempts indicates the attempt limiter rejected the operation.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
