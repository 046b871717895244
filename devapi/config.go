package devapi

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
)

// Config configures the dev server process
type Config struct {
	Addr       string        `env:"AUTHSTATE_DEVAPI_ADDR" envDefault:"127.0.0.1:3333"`
	DSN        string        `env:"AUTHSTATE_DEVAPI_DSN" envDefault:":memory:"`
	SigningKey string        `env:"AUTHSTATE_DEVAPI_SIGNING_KEY" envDefault:"dev-signing-key"`
	Issuer     string        `env:"AUTHSTATE_DEVAPI_ISSUER" envDefault:"authstate-devapi"`
	TokenTTL   time.Duration `env:"AUTHSTATE_DEVAPI_TOKEN_TTL" envDefault:"1h"`
	CookieName string        `env:"AUTHSTATE_DEVAPI_COOKIE" envDefault:"token"`
	Seed       bool          `env:"AUTHSTATE_DEVAPI_SEED" envDefault:"true"`
}

// LoadConfig reads Config from the environment
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "parse env").
			WithTextCode(authstate.TextCodeInvalidConfig)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.SigningKey, validation.Required, validation.Length(8, 0)),
		validation.Field(&c.TokenTTL, validation.Required),
		validation.Field(&c.CookieName, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid dev api configuration").
			WithTextCode(authstate.TextCodeInvalidConfig)
	}
	return nil
}

// Options turns the configuration into server options
func (c Config) Options(routes Routes, logger authstate.Logger) Options {
	return Options{
		SigningKey: []byte(c.SigningKey),
		Issuer:     c.Issuer,
		TokenTTL:   c.TokenTTL,
		CookieName: c.CookieName,
		Routes:     routes,
		Logger:     logger,
	}
}
