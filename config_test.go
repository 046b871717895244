package authstate_test

import (
	"testing"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := authstate.LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, authstate.DefaultClientConfig(), cfg)
}

func TestLoadClientConfig_Env(t *testing.T) {
	t.Setenv("AUTHSTATE_BASE_URL", "https://api.example.com/")
	t.Setenv("AUTHSTATE_STUDENTS_PATH", "/v1/students/")
	t.Setenv("AUTHSTATE_TOKEN_LOOKUP", "cookie:session")
	t.Setenv("AUTHSTATE_TIMEOUT", "3s")
	t.Setenv("AUTHSTATE_TOKEN", "abc")

	cfg, err := authstate.LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.GetBaseURL())
	assert.Equal(t, "/v1/students", cfg.GetStudentsPath())
	assert.Equal(t, "cookie:session", cfg.GetTokenLookup())
	assert.Equal(t, 3*time.Second, cfg.GetTimeout())
	assert.Equal(t, "abc", cfg.Token)
}

func TestLoadClientConfig_BadDuration(t *testing.T) {
	t.Setenv("AUTHSTATE_TIMEOUT", "soon")

	_, err := authstate.LoadClientConfig()
	require.Error(t, err)
	assert.True(t, authstate.HasTextCode(err, authstate.TextCodeInvalidConfig))
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*authstate.ClientConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*authstate.ClientConfig) {}},
		{name: "missing base url", mutate: func(c *authstate.ClientConfig) { c.BaseURL = "" }, wantErr: true},
		{name: "bad base url", mutate: func(c *authstate.ClientConfig) { c.BaseURL = "not a url" }, wantErr: true},
		{name: "relative verify path", mutate: func(c *authstate.ClientConfig) { c.VerifyPath = "verify-token" }, wantErr: true},
		{name: "unknown lookup source", mutate: func(c *authstate.ClientConfig) { c.TokenLookup = "query:token" }, wantErr: true},
		{name: "header without scheme", mutate: func(c *authstate.ClientConfig) { c.AuthScheme = "" }, wantErr: true},
		{
			name: "cookie without scheme",
			mutate: func(c *authstate.ClientConfig) {
				c.TokenLookup = "cookie:token"
				c.AuthScheme = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := authstate.DefaultClientConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, authstate.HasTextCode(err, authstate.TextCodeInvalidConfig))
				return
			}
			assert.NoError(t, err)
		})
	}
}
