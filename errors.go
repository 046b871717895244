package authstate

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNoProvider         = "AUTH_STATE_NO_PROVIDER"
	TextCodeTokenInvalid       = "AUTH_STATE_TOKEN_INVALID"
	TextCodeTokenExpired       = "AUTH_STATE_TOKEN_EXPIRED"
	TextCodeInvalidRole        = "AUTH_STATE_INVALID_ROLE"
	TextCodeProfileNotFound    = "AUTH_STATE_PROFILE_NOT_FOUND"
	TextCodeProfileFetchFailed = "AUTH_STATE_PROFILE_FETCH_FAILED"
	TextCodeLogoutFailed       = "AUTH_STATE_LOGOUT_FAILED"
	TextCodeBackendUnavailable = "AUTH_STATE_BACKEND_UNAVAILABLE"
	TextCodeInvalidCredentials = "AUTH_STATE_INVALID_CREDENTIALS"
	TextCodeInvalidConfig      = "AUTH_STATE_INVALID_CONFIG"
)

// ErrNoProvider is returned when the accessor is used outside a provider subtree
var ErrNoProvider = goerrors.New("UseAuth must be used within a context carrying a Provider", goerrors.CategoryInternal).
	WithTextCode(TextCodeNoProvider)

// ErrTokenInvalid the session token is missing or was rejected
var ErrTokenInvalid = goerrors.New("session token is missing or invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired the session token is past its expiration
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRole the verified session carries a role we do not know
var ErrInvalidRole = goerrors.New("session has an unknown or invalid role", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeForbidden)

// ErrProfileNotFound there is no student record for the user id
var ErrProfileNotFound = goerrors.New("student profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrProfileFetchFailed the student record could not be loaded
var ErrProfileFetchFailed = goerrors.New("failed to fetch student profile", goerrors.CategoryInternal).
	WithTextCode(TextCodeProfileFetchFailed)

// ErrLogoutFailed the backend did not confirm the logout
var ErrLogoutFailed = goerrors.New("failed to logout", goerrors.CategoryInternal).
	WithTextCode(TextCodeLogoutFailed)

// ErrBackendUnavailable the backend answered with an unexpected status
var ErrBackendUnavailable = goerrors.New("auth backend unavailable", goerrors.CategoryInternal).
	WithTextCode(TextCodeBackendUnavailable)

// ErrInvalidCredentials the backend rejected the login credentials
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// wrapError clones base so the sentinel is never mutated, keeping its
// text code while recording the cause and metadata.
func wrapError(base *goerrors.Error, err error, meta map[string]any) error {
	if base == nil {
		return err
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// HasTextCode reports whether err is a go-errors error carrying code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
