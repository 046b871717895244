package authstate

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

var _ Config = ClientConfig{}

var tokenLookupPattern = regexp.MustCompile(`^(header|cookie):[A-Za-z0-9_\-]+$`)

// ClientConfig configures the backend client. Every field can be set from
// the environment.
type ClientConfig struct {
	BaseURL      string        `env:"AUTHSTATE_BASE_URL" envDefault:"http://localhost:3333" json:"base_url"`
	VerifyPath   string        `env:"AUTHSTATE_VERIFY_PATH" envDefault:"/verify-token" json:"verify_path"`
	StudentsPath string        `env:"AUTHSTATE_STUDENTS_PATH" envDefault:"/students" json:"students_path"`
	LogoutPath   string        `env:"AUTHSTATE_LOGOUT_PATH" envDefault:"/logout" json:"logout_path"`
	SessionsPath string        `env:"AUTHSTATE_SESSIONS_PATH" envDefault:"/sessions" json:"sessions_path"`
	TokenLookup  string        `env:"AUTHSTATE_TOKEN_LOOKUP" envDefault:"header:Authorization" json:"token_lookup"`
	AuthScheme   string        `env:"AUTHSTATE_AUTH_SCHEME" envDefault:"Bearer" json:"auth_scheme"`
	Timeout      time.Duration `env:"AUTHSTATE_TIMEOUT" envDefault:"10s" json:"timeout"`
	Token        string        `env:"AUTHSTATE_TOKEN" json:"-"`
}

// DefaultClientConfig returns the configuration used when nothing is set
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      "http://localhost:3333",
		VerifyPath:   "/verify-token",
		StudentsPath: "/students",
		LogoutPath:   "/logout",
		SessionsPath: "/sessions",
		TokenLookup:  "header:Authorization",
		AuthScheme:   "Bearer",
		Timeout:      10 * time.Second,
	}
}

// LoadClientConfig reads the configuration from the environment and validates it
func LoadClientConfig() (ClientConfig, error) {
	cfg, err := env.ParseAs[ClientConfig]()
	if err != nil {
		return ClientConfig{}, goerrors.Wrap(err, goerrors.CategoryValidation, "parse env").
			WithTextCode(TextCodeInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

// Validate checks the configuration
func (c ClientConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.VerifyPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.StudentsPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.LogoutPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.SessionsPath, validation.Required, validation.By(absolutePath)),
		validation.Field(&c.TokenLookup, validation.Required, validation.Match(tokenLookupPattern)),
		validation.Field(&c.AuthScheme, c.authSchemeRules()...),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid client configuration").
			WithTextCode(TextCodeInvalidConfig)
	}
	return nil
}

// the scheme only matters when the token travels in a header
func (c ClientConfig) authSchemeRules() []validation.Rule {
	if strings.HasPrefix(c.TokenLookup, "header:") {
		return []validation.Rule{validation.Required}
	}
	return nil
}

func absolutePath(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}

func (c ClientConfig) GetBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c ClientConfig) GetVerifyPath() string {
	return c.VerifyPath
}

func (c ClientConfig) GetStudentsPath() string {
	return strings.TrimRight(c.StudentsPath, "/")
}

func (c ClientConfig) GetLogoutPath() string {
	return c.LogoutPath
}

func (c ClientConfig) GetSessionsPath() string {
	return c.SessionsPath
}

func (c ClientConfig) GetTokenLookup() string {
	return c.TokenLookup
}

func (c ClientConfig) GetAuthScheme() string {
	return c.AuthScheme
}

func (c ClientConfig) GetTimeout() time.Duration {
	return c.Timeout
}
