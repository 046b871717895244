package cli

import (
	"context"
	"fmt"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Create a session and store its token",
		Long: `Exchange email and password for a session token and store it in the
token file. Later status and logout calls use it.

Examples:
  authstate login --email student@example.com --password student`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := authstate.NewTokenStore("")
			client := a.client(tokens)

			grant, err := client.CreateSession(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			err = saveSession(a.tokenFile, savedSession{
				Token:   grant.Token,
				Email:   email,
				Role:    grant.Role,
				UserID:  grant.ID,
				SavedAt: time.Now(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Logged in as %s (role: %s, id: %s)\n", email, grant.Role, grant.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

type statusView struct {
	State        authstate.State `json:"state"`
	Resolution   string          `json:"resolution"`
	ProfileError string          `json:"profile_error,omitempty"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify the stored session and print the resolved state",
		Long: `Mount a session provider over the stored token, wait until verification
and the profile fetch settle, and print the resulting state as JSON.

A missing or rejected token is not an error: it prints an unauthenticated state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, _, err := a.tokenSource()
			if err != nil {
				return err
			}

			client := a.client(tokens)
			provider := authstate.NewProvider(client, client,
				authstate.WithLoggerProvider(a.loggerProvider()),
			)
			defer provider.Unmount()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.GetTimeout())
			defer cancel()

			provider.Mount(ctx)
			state, err := provider.WaitSettled(ctx)
			if err != nil {
				return fmt.Errorf("session did not settle: %w", err)
			}

			view := statusView{State: state, Resolution: "unauthenticated"}
			if state.Resolution().Authenticated() {
				view.Resolution = "authenticated"
			}
			if state.ProfileErr != nil {
				view.ProfileError = state.ProfileErr.Error()
			}

			fmt.Fprintln(a.out, print.MaybePrettyJSON(view))
			return nil
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, session, err := a.tokenSource()
			if err != nil {
				return err
			}

			if token, _ := tokens.Token(cmd.Context()); token == "" {
				fmt.Fprintln(a.out, "Not logged in.")
				return nil
			}

			if err := a.client(tokens).Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}

			if session != nil {
				if err := removeSession(a.tokenFile); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Logged out: %s\n", session.Email)
				return nil
			}

			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}
