package identity

import "errors"

var (
	// ErrInvalidToken indicates the session token failed validation.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrInvalidCredentials covers unknown email, wrong password and
	// deactivated accounts alike, so login failures are indistinguishable.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)
