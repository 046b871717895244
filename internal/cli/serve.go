package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-auth-state/devapi"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr, dsn string
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long: `Run an auth backend with seeded accounts for local development.

Seeded accounts:
  admin@example.com        / admin
  coordinator@example.com  / coordinator
  student@example.com      / student

Routes follow the client configuration so both sides agree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := devapi.LoadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if dsn != "" {
				cfg.DSN = dsn
			}
			if noSeed {
				cfg.Seed = false
			}

			return runServer(cmd.Context(), a, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from AUTHSTATE_DEVAPI_ADDR)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "sqlite DSN (default from AUTHSTATE_DEVAPI_DSN)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "start without the seeded accounts")

	return cmd
}

func runServer(ctx context.Context, a *app, cfg devapi.Config) error {
	logger := a.logger.GetLogger("devapi")

	db, err := devapi.OpenSQLite(cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	store := devapi.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	count, err := store.CountAccounts(ctx)
	if err != nil {
		return err
	}
	if cfg.Seed && count == 0 {
		accounts, err := store.Seed(ctx, devapi.DefaultSeed()...)
		if err != nil {
			return err
		}
		logger.Info("seeded accounts", "count", len(accounts))
	}

	srv, err := devapi.New(store, cfg.Options(devapi.RoutesFromConfig(a.cfg), logger))
	if err != nil {
		return err
	}

	url, err := srv.Start(cfg.Addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Dev backend listening on %s\n", url)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
