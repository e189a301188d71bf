// Command migrate manages the users schema with the migrations embedded in
// the binary. The database is taken from DATABASE_DRIVER and DATABASE_URL
// (or the DB_* variables), the same settings the server uses.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/Skryldev/useradmin/config"
	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/migrations"
)

var (
	flagVerbose bool
	flagYes     bool

	d *db.DB
	m *migrate.Migrate
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply or roll back the users schema",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		if d, err = db.Open(cfg.DB()); err != nil {
			return fmt.Errorf("open %s database: %w", cfg.DatabaseDriver, err)
		}
		if m, err = migrations.New(d, logger); err != nil {
			_ = d.Close()
			return err
		}
		m.Log = migrations.NewLogger(logger, flagVerbose)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		if m != nil {
			srcErr, dbErr := m.Close()
			errs = append(errs, srcErr, dbErr)
		}
		if d != nil {
			errs = append(errs, d.Close())
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every migration step")
	dropCmd.Flags().BoolVar(&flagYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd, dropCmd)
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("up: %w", err)
		}
		slog.Info("migrations: up completed")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down [N]",
	Short: "Roll back N migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("down: invalid steps argument %q", args[0])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("down: %w", err)
		}
		slog.Info("migrations: down completed", "steps", steps)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(cmd.OutOrStdout(), "version: none")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
		return nil
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <V>",
	Short: "Set the schema version without running migrations (clears the dirty flag)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("force: invalid version %q", args[0])
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force: %w", err)
		}
		slog.Info("migrations: forced", "version", v)
		return nil
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop every table (development only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagYes {
			fmt.Fprint(cmd.ErrOrStderr(), "WARNING: drop will destroy all tables. Type 'yes' to confirm: ")
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}
		if err := m.Drop(); err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		slog.Info("migrations: all tables dropped")
		return nil
	},
}
