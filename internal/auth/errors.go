package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for every login failure: unknown
	// email, wrong password, disabled account. Callers must not be able to
	// tell which check failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken is the single externally visible verification
	// failure. Internal failure kinds wrap it, so errors.Is reports true
	// for all of them while the wrapped message keeps the detail for logs.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)
