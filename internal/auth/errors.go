package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown identifier, wrong secret and
	// inactive accounts alike; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUnauthorized is the uniform failure for bad, expired or wrong-typed
	// tokens.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden means authenticated but lacking permission.
	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
)

// Token codec failures. DecodeTyped folds all of these into ErrUnauthorized
// at the service layer so clients see a single generic rejection.
var (
	ErrTokenInvalid   = errors.New("auth: invalid token")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrWrongTokenType = errors.New("auth: wrong token type")
)
