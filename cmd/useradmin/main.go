// Command useradmin runs the user service, the browser admin UI, or both, and
// offers a terminal console and a bulk seeding command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/Skryldev/useradmin/client"
	"github.com/Skryldev/useradmin/config"
	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/migrations"
	"github.com/Skryldev/useradmin/repo"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagDBDriver  string
	flagDBURL     string
	flagAPIURL    string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "useradmin",
	Short:         "User directory service and admin interface",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (env USERADMIN_LOG_LEVEL)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text|json (env USERADMIN_LOG_FORMAT)")
	pf.StringVar(&flagDBDriver, "db-driver", "", "database driver: sqlite3|postgres|mysql (env DATABASE_DRIVER)")
	pf.StringVar(&flagDBURL, "db-url", "", "database DSN (env DATABASE_URL)")
	pf.StringVar(&flagAPIURL, "api-url", "", "user service base URL for ui and console (env USERADMIN_API_URL)")

	rootCmd.AddCommand(apiCmd, uiCmd, serveCmd, consoleCmd, seedCmd)
}

// setup loads the environment, applies flag overrides and installs the logger.
func setup(cmd *cobra.Command) error {
	var err error
	if cfg, err = config.Load(); err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("log-level", &cfg.LogLevel, flagLogLevel)
	override("log-format", &cfg.LogFormat, flagLogFormat)
	if flags.Changed("db-driver") {
		if cfg, err = cfg.WithDriver(flagDBDriver); err != nil {
			return err
		}
	}
	override("db-url", &cfg.DatabaseURL, flagDBURL)
	override("api-url", &cfg.APIURL, flagAPIURL)

	if logger, err = config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// store is an open database with the repository over it.
type store struct {
	db      *db.DB
	dialect repo.Dialect
	users   repo.UserRepository
}

// openStore connects to the configured database, retrying while it is
// unreachable, and brings the schema up to date.
func openStore(ctx context.Context) (*store, error) {
	dialect, err := repo.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	hook := db.NewLogHook(db.LogHookConfig{
		Logger:             logger.With("component", "db"),
		SlowQueryThreshold: 200 * time.Millisecond,
	})

	var d *db.DB
	err = db.WithRetry(ctx, db.RetryConfig{MaxAttempts: 5, Delay: 2 * time.Second}, func() error {
		var openErr error
		d, openErr = db.Open(cfg.DB(hook))
		if openErr != nil {
			logger.WarnContext(ctx, "database not ready", "driver", cfg.DatabaseDriver, "error", openErr)
		}
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DatabaseDriver, err)
	}

	if err := migrations.Up(d, logger); err != nil {
		_ = d.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "database ready", "driver", cfg.DatabaseDriver, "open_connections", d.Stats().OpenConnections)
	return &store{db: d, dialect: dialect, users: repo.NewUserRepo(d, dialect)}, nil
}

func newClient() (*client.Client, error) {
	return client.New(cfg.APIURL,
		client.WithTimeout(cfg.ClientTimeout),
		client.WithLogger(logger.With("component", "client")),
	)
}
