package authstate

import (
	"context"
)

// Resolution is the outcome of resolving a session: either
// Unauthenticated or Authenticated.
type Resolution interface {
	isResolution()
	Authenticated() bool
}

// Unauthenticated means verification failed. Reason holds the verifier
// error, if any.
type Unauthenticated struct {
	Reason error
}

func (Unauthenticated) isResolution() {}

func (Unauthenticated) Authenticated() bool { return false }

// Authenticated carries the verified session and its profile
type Authenticated struct {
	Role    Role
	UserID  string
	Profile Profile
}

func (Authenticated) isResolution() {}

func (Authenticated) Authenticated() bool { return true }

// Resolve verifies the session and, when it is valid, loads the profile.
//
// A verification failure is not an error: it resolves to Unauthenticated.
// A profile failure returns the Authenticated result with an empty profile
// together with the error.
func Resolve(ctx context.Context, verifier TokenVerifier, profiles ProfileFetcher) (Resolution, error) {
	identity, err := verifyIdentity(ctx, verifier)
	if err != nil {
		return Unauthenticated{Reason: err}, nil
	}

	res := Authenticated{
		Role:   identity.Role,
		UserID: identity.ID,
	}

	if profiles == nil {
		return res, nil
	}

	profile, err := profiles.FetchProfile(ctx, identity.ID)
	if err != nil {
		return res, err
	}
	res.Profile = profile

	return res, nil
}

// verifyIdentity runs the verifier and rejects identities that cannot back
// an authenticated session.
func verifyIdentity(ctx context.Context, verifier TokenVerifier) (VerifiedIdentity, error) {
	if verifier == nil {
		return VerifiedIdentity{}, ErrTokenInvalid
	}

	identity, err := verifier.Verify(ctx)
	if err != nil {
		return VerifiedIdentity{}, err
	}

	if !identity.Role.IsValid() {
		return VerifiedIdentity{}, wrapError(ErrInvalidRole, nil, map[string]any{
			"role":    string(identity.Role),
			"user_id": identity.ID,
		})
	}

	if identity.ID == "" {
		return VerifiedIdentity{}, wrapError(ErrTokenInvalid, nil, map[string]any{
			"reason": "empty user id",
		})
	}

	return identity, nil
}
