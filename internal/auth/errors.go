package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials is returned for every credential failure at
	// login regardless of which factor failed, to prevent user enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken indicates a token failed signature, shape or expiry
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUserInactive indicates the token verified but its subject no longer
	// exists or has been deactivated.
	ErrUserInactive = errors.New("auth: user not found or inactive")
)
