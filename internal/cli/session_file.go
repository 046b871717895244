package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
)

// savedSession is what login leaves on disk
type savedSession struct {
	Token   string         `json:"token"`
	Email   string         `json:"email"`
	Role    authstate.Role `json:"role"`
	UserID  string         `json:"user_id"`
	SavedAt time.Time      `json:"saved_at"`
}

// loadSession returns nil when there is no stored session
func loadSession(path string) (*savedSession, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session file").
			WithMetadata(map[string]any{"path": path})
	}

	var session savedSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "session file is corrupted").
			WithMetadata(map[string]any{"path": path})
	}
	return &session, nil
}

func saveSession(path string, session savedSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session directory")
	}

	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write session file").
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove session file").
			WithMetadata(map[string]any{"path": path})
	}
	return nil
}
