package authstate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-auth-state/devapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func startDevAPI(t *testing.T) *devapi.Server {
	t.Helper()

	db, err := devapi.OpenSQLite(":memory:")
	require.NoError(t, err)

	store := devapi.NewStore(db, devapi.WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	_, err = store.Seed(ctx, devapi.DefaultSeed()...)
	require.NoError(t, err)

	srv, err := devapi.New(store, devapi.Options{
		SigningKey: []byte("client-test-key"),
		Logger:     &captureLogger{},
	})
	require.NoError(t, err)

	_, err = srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = db.Close()
	})

	return srv
}

func clientConfig(baseURL string) authstate.ClientConfig {
	cfg := authstate.DefaultClientConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestClient_SessionLifecycle(t *testing.T) {
	lookups := []struct {
		name   string
		lookup string
	}{
		{name: "header", lookup: "header:Authorization"},
		{name: "cookie", lookup: "cookie:" + devapi.DefaultCookieName},
	}

	for _, tt := range lookups {
		t.Run(tt.name, func(t *testing.T) {
			srv := startDevAPI(t)
			ctx := context.Background()

			cfg := clientConfig(srv.URL())
			cfg.TokenLookup = tt.lookup
			tokens := authstate.NewTokenStore("")
			client := authstate.NewClient(cfg,
				authstate.WithTokenSource(tokens),
				authstate.WithClientLogger(&captureLogger{}),
			)

			grant, err := client.CreateSession(ctx, "student@example.com", "student")
			require.NoError(t, err)
			assert.Equal(t, authstate.RoleStudent, grant.Role)
			assert.Equal(t, "42", grant.ID)

			stored, _ := tokens.Token(ctx)
			assert.Equal(t, grant.Token, stored)

			identity, err := client.Verify(ctx)
			require.NoError(t, err)
			assert.Equal(t, authstate.VerifiedIdentity{Role: authstate.RoleStudent, ID: "42"}, identity)

			profile, err := client.FetchProfile(ctx, "42")
			require.NoError(t, err)
			assert.Equal(t, "42", profile.ID)
			assert.Equal(t, "2024001", profile.RegistrationID)
			assert.Equal(t, "Ana Souza", profile.Name)
			assert.Equal(t, "2001-04-12", profile.BirthDate)
			assert.Equal(t, authstate.SupportCenter{ID: "sc-1", Name: "Polo Centro"}, profile.SupportCenter)

			require.NoError(t, client.Logout(ctx))
			stored, _ = tokens.Token(ctx)
			assert.Empty(t, stored)

			_, err = client.Verify(ctx)
			assert.True(t, authstate.HasTextCode(err, authstate.TextCodeTokenInvalid))
		})
	}
}

func TestClient_Errors(t *testing.T) {
	srv := startDevAPI(t)
	ctx := context.Background()
	cfg := clientConfig(srv.URL())

	t.Run("invalid credentials", func(t *testing.T) {
		client := authstate.NewClient(cfg, authstate.WithClientLogger(&captureLogger{}))
		_, err := client.CreateSession(ctx, "admin@example.com", "wrong")
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeInvalidCredentials))
	})

	t.Run("no token", func(t *testing.T) {
		client := authstate.NewClient(cfg, authstate.WithClientLogger(&captureLogger{}))
		_, err := client.Verify(ctx)
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeTokenInvalid))
	})

	tokens := authstate.NewTokenStore("")
	client := authstate.NewClient(cfg,
		authstate.WithTokenSource(tokens),
		authstate.WithClientLogger(&captureLogger{}),
	)
	_, err := client.CreateSession(ctx, "admin@example.com", "admin")
	require.NoError(t, err)

	t.Run("profile not found", func(t *testing.T) {
		_, err := client.FetchProfile(ctx, "1")
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeProfileNotFound))
	})

	t.Run("empty user id", func(t *testing.T) {
		_, err := client.FetchProfile(ctx, "")
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeProfileNotFound))
	})

	t.Run("profile backend failure", func(t *testing.T) {
		srv.FailProfile(true)
		defer srv.FailProfile(false)

		_, err := client.FetchProfile(ctx, "42")
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeBackendUnavailable))
	})

	t.Run("logout failure keeps the token", func(t *testing.T) {
		srv.FailLogout(true)
		defer srv.FailLogout(false)

		err := client.Logout(ctx)
		require.Error(t, err)
		stored, _ := tokens.Token(ctx)
		assert.NotEmpty(t, stored)
	})

	t.Run("unreachable backend", func(t *testing.T) {
		down := authstate.NewClient(clientConfig("http://127.0.0.1:1"), authstate.WithClientLogger(&captureLogger{}))
		_, err := down.Verify(ctx)
		assert.True(t, authstate.HasTextCode(err, authstate.TextCodeBackendUnavailable))
	})
}

func TestClient_RequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"role":"admin","id":"1"}`))
	}))
	defer ts.Close()

	cfg := clientConfig(ts.URL)
	cfg.AuthScheme = "Token"
	client := authstate.NewClient(cfg,
		authstate.WithTokenSource(authstate.StaticToken("abc")),
		authstate.WithHTTPClient(ts.Client()),
		authstate.WithClientLogger(&captureLogger{}),
	)

	identity, err := client.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authstate.VerifiedIdentity{Role: authstate.RoleAdmin, ID: "1"}, identity)

	assert.Equal(t, "Token abc", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.NotEmpty(t, got.Get(authstate.HeaderRequestID))
}

func TestClient_MissingStudentEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := authstate.NewClient(clientConfig(ts.URL), authstate.WithClientLogger(&captureLogger{}))
	_, err := client.FetchProfile(context.Background(), "42")
	assert.True(t, authstate.HasTextCode(err, authstate.TextCodeBackendUnavailable))
}

// The provider driven by the real client against the dev backend.
func TestProvider_WithClient(t *testing.T) {
	srv := startDevAPI(t)
	ctx := context.Background()

	tokens := authstate.NewTokenStore("")
	client := authstate.NewClient(clientConfig(srv.URL()),
		authstate.WithTokenSource(tokens),
		authstate.WithClientLogger(&captureLogger{}),
	)
	_, err := client.CreateSession(ctx, "student@example.com", "student")
	require.NoError(t, err)

	p := newTestProvider(t, client, client)
	p.Mount(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	state, err := p.WaitSettled(waitCtx)
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, authstate.RoleStudent, state.Role)
	assert.Equal(t, "42", state.Student.ID)
	assert.NoError(t, state.ProfileErr)

	srv.FailLogout(true)
	require.Error(t, p.Logout(ctx))
	assert.True(t, p.IsAuthenticated())

	srv.FailLogout(false)
	require.NoError(t, p.Logout(ctx))
	assert.False(t, p.IsAuthenticated())
	assert.True(t, p.Student().IsZero())
}
