package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-auth-state/devapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func startBackend(t *testing.T) string {
	t.Helper()

	db, err := devapi.OpenSQLite(":memory:")
	require.NoError(t, err)

	store := devapi.NewStore(db, devapi.WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	_, err = store.Seed(ctx, devapi.DefaultSeed()...)
	require.NoError(t, err)

	srv, err := devapi.New(store, devapi.Options{SigningKey: []byte("cli-test-signing-key")})
	require.NoError(t, err)

	url, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = db.Close()
	})

	return url
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SessionRoundTrip(t *testing.T) {
	url := startBackend(t)
	tokenFile := filepath.Join(t.TempDir(), "session.json")
	common := []string{"--base-url", url, "--token-file", tokenFile}

	out, err := run(t, append(common, "status")...)
	require.NoError(t, err)

	var view struct {
		State      authstate.State `json:"state"`
		Resolution string          `json:"resolution"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.Equal(t, "unauthenticated", view.Resolution)
	assert.False(t, view.State.IsLoading)

	out, err = run(t, append(common, "login", "--email", "student@example.com", "--password", "student")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as student@example.com (role: student, id: 42)")

	session, err := loadSession(tokenFile)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, authstate.RoleStudent, session.Role)

	out, err = run(t, append(common, "status")...)
	require.NoError(t, err)

	view.State = authstate.State{}
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.Equal(t, "authenticated", view.Resolution)
	assert.Equal(t, "42", view.State.UserID)
	assert.Equal(t, "Ana Souza", view.State.Student.Name)
	assert.Equal(t, "Polo Centro", view.State.Student.SupportCenter.Name)

	out, err = run(t, append(common, "logout")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out: student@example.com")

	session, err = loadSession(tokenFile)
	require.NoError(t, err)
	assert.Nil(t, session)

	out, err = run(t, append(common, "logout")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestCLI_LoginFailure(t *testing.T) {
	url := startBackend(t)
	tokenFile := filepath.Join(t.TempDir(), "session.json")

	_, err := run(t, "--base-url", url, "--token-file", tokenFile,
		"login", "--email", "admin@example.com", "--password", "wrong")
	require.Error(t, err)
	assert.True(t, authstate.HasTextCode(err, authstate.TextCodeInvalidCredentials))

	session, err := loadSession(tokenFile)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestCLI_InvalidBaseURL(t *testing.T) {
	_, err := run(t, "--base-url", "not a url", "--token-file", filepath.Join(t.TempDir(), "s.json"), "status")
	require.Error(t, err)
	assert.True(t, authstate.HasTextCode(err, authstate.TextCodeInvalidConfig))
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	session, err := loadSession(path)
	require.NoError(t, err)
	assert.Nil(t, session)

	require.NoError(t, saveSession(path, savedSession{Token: "abc", Email: "a@example.com", Role: authstate.RoleAdmin, UserID: "1"}))

	session, err = loadSession(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", session.Token)
	assert.Equal(t, authstate.RoleAdmin, session.Role)

	require.NoError(t, removeSession(path))
	require.NoError(t, removeSession(path))
}
