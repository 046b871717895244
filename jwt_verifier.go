package authstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

var _ TokenVerifier = (*JWTVerifier)(nil)

// SigningKey is a verification key and the algorithm it must be used with
type SigningKey struct {
	JWTAlg string
	Key    any
}

// JWTVerifierConfig configures local token verification. Exactly one key
// source is used, checked in this order: KeyFunc, JWKSetURLs/SigningKeys,
// SigningKey.
type JWTVerifierConfig struct {
	Tokens      TokenSource
	SigningKey  SigningKey
	SigningKeys map[string]SigningKey
	JWKSetURLs  []string
	KeyFunc     jwt.Keyfunc
	Issuer      string
	// Audience, when set, requires the token to list at least one of these
	Audience []string
	Logger   Logger
}

// SessionClaims are the claims a session token carries
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// UserID returns the user id, falling back to the subject
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// JWTVerifier verifies the session token locally instead of asking the
// backend. The role and user id come from the token claims.
type JWTVerifier struct {
	tokens        TokenSource
	keyFunc       jwt.Keyfunc
	parserOptions []jwt.ParserOption
	logger        Logger
}

// NewJWTVerifier builds a verifier from cfg
func NewJWTVerifier(cfg JWTVerifierConfig) (*JWTVerifier, error) {
	_, logger := ResolveLogger("authstate.verifier", nil, cfg.Logger)

	v := &JWTVerifier{
		tokens: cfg.Tokens,
		logger: logger,
	}

	switch {
	case cfg.KeyFunc != nil:
		v.keyFunc = cfg.KeyFunc
	case len(cfg.JWKSetURLs) > 0 || len(cfg.SigningKeys) > 0:
		givenKeys := make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
		for kid, key := range cfg.SigningKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
		if len(cfg.JWKSetURLs) > 0 {
			kf, err := multiKeyfunc(givenKeys, cfg.JWKSetURLs, logger)
			if err != nil {
				return nil, err
			}
			v.keyFunc = kf
		} else {
			v.keyFunc = keyfunc.NewGiven(givenKeys).Keyfunc
		}
	case cfg.SigningKey.Key != nil:
		v.keyFunc = signingKeyFunc(cfg.SigningKey)
		if cfg.SigningKey.JWTAlg != "" {
			v.parserOptions = append(v.parserOptions, jwt.WithValidMethods([]string{cfg.SigningKey.JWTAlg}))
		}
	default:
		return nil, goerrors.New("jwt verifier requires a KeyFunc, JWKSetURLs, SigningKeys or SigningKey", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}

	if cfg.Issuer != "" {
		v.parserOptions = append(v.parserOptions, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		v.parserOptions = append(v.parserOptions, jwt.WithAudience(cfg.Audience...))
	}

	return v, nil
}

// Verify parses the current token and maps its claims to an identity
func (v *JWTVerifier) Verify(ctx context.Context) (VerifiedIdentity, error) {
	if v.tokens == nil {
		return VerifiedIdentity{}, ErrTokenInvalid
	}

	raw, err := v.tokens.Token(ctx)
	if err != nil {
		return VerifiedIdentity{}, wrapError(ErrTokenInvalid, err, nil)
	}
	if raw == "" {
		return VerifiedIdentity{}, ErrTokenInvalid
	}

	claims, err := v.Parse(raw)
	if err != nil {
		return VerifiedIdentity{}, err
	}

	return VerifiedIdentity{
		Role: Role(claims.UserRole),
		ID:   claims.UserID(),
	}, nil
}

// Parse validates raw and returns its claims
func (v *JWTVerifier) Parse(raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, v.keyFunc, v.parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrapError(ErrTokenExpired, err, nil)
		}
		v.logger.Debug("session token rejected", "error", err)
		return nil, wrapError(ErrTokenInvalid, err, nil)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwkSetURLs []string, logger Logger) (jwt.Keyfunc, error) {
	opts := keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to do a background refresh of JWT set", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(jwkSetURLs))
	for _, u := range jwkSetURLs {
		m[u] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get JWK sets").
			WithTextCode(TextCodeInvalidConfig)
	}
	return multi.Keyfunc, nil
}

func signingKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg != "" {
			alg, ok := token.Header["alg"].(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing alg", key.JWTAlg)
			}
			if alg != key.JWTAlg {
				return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
			}
		}
		return key.Key, nil
	}
}
