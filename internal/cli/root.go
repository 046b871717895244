package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
)

type app struct {
	cfg       authstate.ClientConfig
	baseURL   string
	tokenFile string
	verbose   bool
	logger    *glog.BaseLogger
	out       io.Writer
}

// NewRootCommand builds the authstate command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "authstate",
		Short: "Inspect and drive an auth backend session",
		Long: `authstate talks to the auth backend the same way an application embedding
the session provider does: it verifies the stored token, resolves the role and
user id, and loads the student profile.

Subcommands:
  serve   Run the development backend
  login   Create a session and store its token
  status  Verify the stored session and print the resolved state
  logout  End the session and remove the stored token

Configuration comes from AUTHSTATE_* environment variables; flags win.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.baseURL, "base-url", "", "auth backend base URL (default from AUTHSTATE_BASE_URL)")
	flags.StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "where the session token is stored")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and state changes")

	root.AddCommand(
		newServeCommand(a),
		newLoginCommand(a),
		newStatusCommand(a),
		newLogoutCommand(a),
	)

	return root
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	a.logger = newLogger(a.verbose)

	cfg, err := authstate.LoadClientConfig()
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	return nil
}

func (a *app) loggerProvider() authstate.LoggerProvider {
	return authstate.ProviderFromBaseLogger(a.logger)
}

func (a *app) client(tokens authstate.TokenSource) *authstate.Client {
	return authstate.NewClient(a.cfg,
		authstate.WithTokenSource(tokens),
		authstate.WithClientLoggerProvider(a.loggerProvider()),
	)
}

// tokenSource prefers AUTHSTATE_TOKEN over the stored session
func (a *app) tokenSource() (*authstate.TokenStore, *savedSession, error) {
	if a.cfg.Token != "" {
		return authstate.NewTokenStore(a.cfg.Token), nil, nil
	}

	session, err := loadSession(a.tokenFile)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return authstate.NewTokenStore(""), nil, nil
	}
	return authstate.NewTokenStore(session.Token), session, nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "authstate", "session.json")
}

func newLogger(verbose bool) *glog.BaseLogger {
	if verbose {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("authstate"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("authstate"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}
