package devapi

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultCookieName = "token"
	DefaultTokenTTL   = time.Hour
	DefaultIssuer     = "authstate-devapi"
)

const localsClaims = "devapi.claims"

// Routes are the paths the server answers on
type Routes struct {
	Verify   string
	Students string
	Logout   string
	Sessions string
}

// RoutesFromConfig reads the paths a client is configured with, so both
// sides agree.
func RoutesFromConfig(cfg authstate.Config) Routes {
	return Routes{
		Verify:   cfg.GetVerifyPath(),
		Students: cfg.GetStudentsPath(),
		Logout:   cfg.GetLogoutPath(),
		Sessions: cfg.GetSessionsPath(),
	}
}

// Options configures the Server
type Options struct {
	SigningKey []byte
	Issuer     string
	TokenTTL   time.Duration
	CookieName string
	Routes     Routes
	Logger     authstate.Logger
}

// Server is an in-process stand in for the auth backend
type Server struct {
	app     *fiber.App
	store   *Store
	tokens  *TokenIssuer
	routes  Routes
	cookie  string
	ttl     time.Duration
	logger  authstate.Logger
	ln      net.Listener
	baseURL string

	failLogout  atomic.Bool
	failProfile atomic.Bool
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r sessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// New creates a server over store. Missing options fall back to the
// client defaults.
func New(store *Store, opts Options) (*Server, error) {
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Routes == (Routes{}) {
		opts.Routes = RoutesFromConfig(authstate.DefaultClientConfig())
	}

	tokens, err := NewTokenIssuer(opts.SigningKey, opts.Issuer, opts.TokenTTL)
	if err != nil {
		return nil, err
	}

	_, logger := authstate.ResolveLogger("authstate.devapi", nil, opts.Logger)

	s := &Server{
		store:  store,
		tokens: tokens,
		routes: opts.Routes,
		cookie: opts.CookieName,
		ttl:    opts.TokenTTL,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.app.Use(s.requestID)

	s.app.Get(s.routes.Verify, s.requireSession, s.verifyToken)
	s.app.Get(s.routes.Students+"/:id", s.requireSession, s.showStudent)
	s.app.Post(s.routes.Logout, s.logout)
	s.app.Post(s.routes.Sessions, s.createSession)
}

// App exposes the fiber app, mostly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// Tokens returns the issuer used by the server
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// FailLogout makes the logout endpoint answer 503 while enabled
func (s *Server) FailLogout(enabled bool) {
	s.failLogout.Store(enabled)
}

// FailProfile makes the student endpoint answer 500 while enabled
func (s *Server) FailProfile(enabled bool) {
	s.failProfile.Store(enabled)
}

// Start listens on addr in the background and returns the base URL.
// Use "127.0.0.1:0" to pick a free port.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to listen").
			WithMetadata(map[string]any{"addr": addr})
	}

	s.ln = ln
	s.baseURL = "http://" + ln.Addr().String()

	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error("dev api stopped", "error", err)
		}
	}()

	s.logger.Info("dev api listening", "url", s.baseURL)
	return s.baseURL, nil
}

// URL is the base URL after Start
func (s *Server) URL() string {
	return s.baseURL
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestID(c *fiber.Ctx) error {
	if id := c.Get(authstate.HeaderRequestID); id != "" {
		c.Set(authstate.HeaderRequestID, id)
	}
	return c.Next()
}

// tokenFromRequest reads the bearer header first and then the cookie
func (s *Server) tokenFromRequest(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return c.Cookies(s.cookie)
}

func (s *Server) requireSession(c *fiber.Ctx) error {
	raw := s.tokenFromRequest(c)
	if raw == "" {
		return authstate.ErrTokenInvalid
	}

	claims, err := s.tokens.Validate(raw)
	if err != nil {
		return err
	}

	c.Locals(localsClaims, claims)
	return c.Next()
}

func sessionClaims(c *fiber.Ctx) *authstate.SessionClaims {
	claims, _ := c.Locals(localsClaims).(*authstate.SessionClaims)
	return claims
}

// verifyToken answers with the role stored for the account, so a role
// change takes effect without a new token.
func (s *Server) verifyToken(c *fiber.Ctx) error {
	acc, err := s.sessionAccount(c)
	if err != nil {
		return err
	}

	return c.JSON(authstate.VerifiedIdentity{
		Role: authstate.Role(acc.Role),
		ID:   acc.ID,
	})
}

// sessionAccount loads the account behind the session token. A token for
// a deleted account is treated as invalid.
func (s *Server) sessionAccount(c *fiber.Ctx) (*Account, error) {
	acc, err := s.store.FindAccount(c.UserContext(), sessionClaims(c).UserID())
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, authstate.ErrTokenInvalid
		}
		return nil, err
	}
	return acc, nil
}

func (s *Server) showStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	acc, err := s.sessionAccount(c)
	if err != nil {
		return err
	}

	// students only see their own record
	if authstate.Role(acc.Role) == authstate.RoleStudent && acc.ID != id {
		return c.Status(fiber.StatusForbidden).JSON(errorBody{
			Error:   "forbidden",
			Message: "students can only read their own record",
		})
	}

	if s.failProfile.Load() {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
			Error:   "profile_unavailable",
			Message: "profile lookups are failing",
		})
	}

	student, err := s.store.FindStudent(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"student": student.ToProfile()})
}

func (s *Server) logout(c *fiber.Ctx) error {
	if s.failLogout.Load() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody{
			Error:   "logout_unavailable",
			Message: "logout is failing",
		})
	}

	// logout is idempotent, an unknown or expired token still succeeds
	if raw := s.tokenFromRequest(c); raw != "" {
		if claims, err := s.tokens.Validate(raw); err == nil {
			s.tokens.Revoke(claims)
			s.logger.Debug("session revoked", "user_id", claims.UserID())
		}
	}

	c.ClearCookie(s.cookie)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req sessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{
			Error:   "bad_request",
			Message: err.Error(),
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{
			Error:   "validation",
			Message: err.Error(),
		})
	}

	acc, err := s.store.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	role := authstate.Role(acc.Role)
	token, err := s.tokens.Issue(role, acc.ID)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.cookie,
		Value:    token,
		Expires:  time.Now().Add(s.ttl),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	s.logger.Info("session created", "user_id", acc.ID, "role", acc.Role)

	return c.Status(fiber.StatusCreated).JSON(authstate.SessionGrant{
		Token: token,
		Role:  role,
		ID:    acc.ID,
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := errorBody{Error: "internal", Message: err.Error()}

	var fiberErr *fiber.Error
	var richErr *goerrors.Error
	switch {
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		body.Error = strings.ToLower(strings.ReplaceAll(utils.StatusMessage(status), " ", "_"))
		body.Message = fiberErr.Message
	case errors.As(err, &richErr):
		if richErr.Code != 0 {
			status = richErr.Code
		}
		body.Message = richErr.Message
		body.Error = richErr.TextCode
		if body.Error == "" {
			body.Error = string(richErr.Category)
		}
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("dev api request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(body)
}
