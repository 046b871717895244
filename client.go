package authstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

var (
	_ TokenVerifier = (*Client)(nil)
	_ ProfileAPI    = (*Client)(nil)
)

// HeaderRequestID carries the id we generate for every backend request
const HeaderRequestID = "X-Request-ID"

// SessionGrant is what the backend returns when a session is created
type SessionGrant struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
	ID    string `json:"id"`
}

type studentEnvelope struct {
	Student *Profile `json:"student"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the auth backend: token verification, student profiles,
// session creation and logout.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	tokens         TokenSource
	logger         Logger
	loggerProvider LoggerProvider
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the http.Client used for requests
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource sets where the session token comes from
func WithTokenSource(src TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = src
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(logger Logger) ClientOption {
	return func(c *Client) {
		c.loggerProvider, c.logger = ResolveLogger("authstate.client", nil, logger)
	}
}

// WithClientLoggerProvider resolves the client logger by name from lp
func WithClientLoggerProvider(lp LoggerProvider) ClientOption {
	return func(c *Client) {
		c.loggerProvider, c.logger = ResolveLogger("authstate.client", lp, c.logger)
	}
}

// NewClient creates a backend client. Without a token source requests carry
// no token, which the backend treats as unauthenticated.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.logger == nil {
		c.loggerProvider, c.logger = ResolveLogger("authstate.client", c.loggerProvider, nil)
	}

	return c
}

// Verify asks the backend who the current token belongs to
func (c *Client) Verify(ctx context.Context) (VerifiedIdentity, error) {
	path := c.cfg.GetVerifyPath()
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return VerifiedIdentity{}, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, path); err != nil {
		return VerifiedIdentity{}, err
	}

	var identity VerifiedIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return VerifiedIdentity{}, wrapError(ErrBackendUnavailable, err, map[string]any{"path": path, "reason": "decode"})
	}

	return identity, nil
}

// FetchProfile loads the student record for userID
func (c *Client) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, wrapError(ErrProfileNotFound, nil, map[string]any{"reason": "empty user id"})
	}

	path := c.cfg.GetStudentsPath() + "/" + url.PathEscape(userID)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Profile{}, wrapError(ErrProfileNotFound, nil, map[string]any{"user_id": userID, "path": path})
	}

	if err := c.checkStatus(resp, path); err != nil {
		return Profile{}, err
	}

	var envelope studentEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Profile{}, wrapError(ErrBackendUnavailable, err, map[string]any{"path": path, "reason": "decode"})
	}

	if envelope.Student == nil {
		return Profile{}, wrapError(ErrBackendUnavailable, nil, map[string]any{"path": path, "reason": "missing student"})
	}

	return *envelope.Student, nil
}

// Logout ends the backend session. Any 2xx answer is a success and clears
// the token when the source is a TokenStore.
func (c *Client) Logout(ctx context.Context) error {
	path := c.cfg.GetLogoutPath()
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if err := c.checkStatus(resp, path); err != nil {
		return err
	}

	if store, ok := c.tokens.(*TokenStore); ok {
		store.Clear()
	}

	return nil
}

// CreateSession exchanges credentials for a session token. On success the
// token is kept when the source is a TokenStore.
func (c *Client) CreateSession(ctx context.Context, email, password string) (SessionGrant, error) {
	path := c.cfg.GetSessionsPath()
	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return SessionGrant{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return SessionGrant{}, wrapError(ErrInvalidCredentials, nil, map[string]any{"email": email})
	}

	if err := c.checkStatus(resp, path); err != nil {
		return SessionGrant{}, err
	}

	var grant SessionGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return SessionGrant{}, wrapError(ErrBackendUnavailable, err, map[string]any{"path": path, "reason": "decode"})
	}

	if store, ok := c.tokens.(*TokenStore); ok {
		store.Set(grant.Token)
	}

	return grant, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.GetBaseURL()+path, reqBody)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create request")
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.attachToken(ctx, req); err != nil {
		return nil, err
	}

	c.logger.Debug("backend request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapError(ErrBackendUnavailable, err, map[string]any{
			"method":     method,
			"path":       path,
			"request_id": requestID,
		})
	}

	return resp, nil
}

// attachToken places the token where TokenLookup says the backend looks
// for it: "header:<name>" or "cookie:<name>".
func (c *Client) attachToken(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return wrapError(ErrTokenInvalid, err, nil)
	}
	if token == "" {
		return nil
	}

	source, name, ok := strings.Cut(c.cfg.GetTokenLookup(), ":")
	if !ok || name == "" {
		return goerrors.New(fmt.Sprintf("invalid token lookup %q", c.cfg.GetTokenLookup()), goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}

	switch strings.TrimSpace(source) {
	case "cookie":
		req.AddCookie(&http.Cookie{Name: strings.TrimSpace(name), Value: token})
	default:
		value := token
		if scheme := strings.TrimSpace(c.cfg.GetAuthScheme()); scheme != "" {
			value = scheme + " " + token
		}
		req.Header.Set(strings.TrimSpace(name), value)
	}

	return nil
}

func (c *Client) checkStatus(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	meta := map[string]any{
		"status": resp.StatusCode,
		"path":   path,
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			meta["error"] = errResp.Error
		}
		if errResp.Message != "" {
			meta["message"] = errResp.Message
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return wrapError(ErrTokenInvalid, nil, meta)
	default:
		return wrapError(ErrBackendUnavailable, nil, meta)
	}
}
