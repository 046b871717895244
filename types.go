package authstate

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// TokenVerifier checks the current session token and returns who it belongs to.
// It fails when the token is absent, invalid, or expired.
type TokenVerifier interface {
	Verify(ctx context.Context) (VerifiedIdentity, error)
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(ctx context.Context) (VerifiedIdentity, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(ctx context.Context) (VerifiedIdentity, error) {
	if f == nil {
		return VerifiedIdentity{}, ErrTokenInvalid
	}
	return f(ctx)
}

// ProfileFetcher loads the student profile for a user id
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (Profile, error)
}

// SessionTerminator ends the backend session
type SessionTerminator interface {
	Logout(ctx context.Context) error
}

// ProfileAPI is the backend surface the Provider needs besides verification.
type ProfileAPI interface {
	ProfileFetcher
	SessionTerminator
}

// Auth is what consumers of a subtree get: read access to the
// session plus the two actions that change it.
type Auth interface {
	State() State
	Student() Profile
	Role() Role
	UserID() string
	IsAuthenticated() bool
	IsLoading() bool
	Login(role Role, id string)
	Logout(ctx context.Context) error
	Subscribe(fn func(State)) (unsubscribe func())
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetVerifyPath() string
	GetStudentsPath() string
	GetLogoutPath() string
	GetSessionsPath() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetTimeout() time.Duration
}
