// Package authstate keeps the client side view of an authenticated session:
// who is logged in, with which role, and the student profile that goes with
// that user.
//
// Provider:
//   - A Provider is created once per subtree and attached to a context with
//     WithProvider. Code running under that context calls UseAuth to read the
//     session and to Login or Logout. Outside of it UseAuth fails with
//     ErrNoProvider.
//   - Mount verifies the current token in the background. Until it settles the
//     state reports IsLoading. A failed verification is not an error, the
//     session simply resolves to unauthenticated.
//   - Whenever the user id changes to a new non-empty value the profile is
//     fetched once. Late or stale responses are dropped; failures land in
//     State.ProfileErr.
//   - Subscribe registers listeners that receive a State copy after each change.
//
// Backend:
//   - Client implements the verification, profile and logout collaborators
//     over HTTP. JWTVerifier verifies tokens locally with a signing key or a
//     JWK set instead of asking the backend.
//
// Resolve runs the same verify-then-fetch sequence synchronously and returns
// a tagged Resolution for callers that do not need live state.
package authstate
