package devapi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenIssuer signs HS256 session tokens and remembers revoked ones
type TokenIssuer struct {
	key      []byte
	issuer   string
	ttl      time.Duration
	verifier *authstate.JWTVerifier

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenIssuer creates an issuer signing with key
func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, goerrors.New("token issuer requires a signing key", goerrors.CategoryValidation).
			WithTextCode(authstate.TextCodeInvalidConfig)
	}

	verifier, err := authstate.NewJWTVerifier(authstate.JWTVerifierConfig{
		SigningKey: authstate.SigningKey{
			JWTAlg: jwt.SigningMethodHS256.Alg(),
			Key:    key,
		},
		Issuer: issuer,
	})
	if err != nil {
		return nil, err
	}

	return &TokenIssuer{
		key:      key,
		issuer:   issuer,
		ttl:      ttl,
		verifier: verifier,
		revoked:  map[string]time.Time{},
	}, nil
}

// Issue signs a token for the account
func (t *TokenIssuer) Issue(role authstate.Role, userID string) (string, error) {
	now := time.Now()
	claims := &authstate.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UID:      userID,
		UserRole: string(role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}
	return signed, nil
}

// Validate parses raw and rejects revoked tokens
func (t *TokenIssuer) Validate(raw string) (*authstate.SessionClaims, error) {
	claims, err := t.verifier.Parse(raw)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return nil, authstate.ErrTokenInvalid
	}

	return claims, nil
}

// Revoke stops claims from validating again
func (t *TokenIssuer) Revoke(claims *authstate.SessionClaims) {
	if claims == nil || claims.ID == "" {
		return
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[claims.ID] = exp

	now := time.Now()
	for id, until := range t.revoked {
		if !until.IsZero() && until.Before(now) {
			delete(t.revoked, id)
		}
	}
}
