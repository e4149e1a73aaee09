package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/db"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
	"github.com/angelmondragon/tamwill-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(openDatabase).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// opener connects to the configured database and returns its closer.
type opener func(ctx context.Context) (*sql.DB, func() error, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and inspect the goose schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	root.AddCommand(
		applyCmd(open, "up", "Apply every pending migration", migrate.Up),
		applyCmd(open, "down", "Roll back the most recent migration", migrate.Down),
		statusCmd(open),
		versionCmd(open),
		createCmd(),
		validateCmd(),
	)
	return root
}

func source(cmd *cobra.Command) (fs.FS, error) {
	dir, _ := cmd.Flags().GetString("dir")
	return migrate.Source(dir)
}

func withDB(cmd *cobra.Command, open opener, fn func(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) error) (err error) {
	fsys, err := source(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sqlDB, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeFn())
	}()
	return fn(ctx, sqlDB, fsys)
}

type applyFunc func(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) ([]migrate.Result, error)

func applyCmd(open opener, use, short string, apply applyFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, open, func(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) error {
				results, err := apply(ctx, sqlDB, fsys)
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func statusCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withDB(cmd, open, func(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) error {
				statuses, err := migrate.StatusOf(ctx, sqlDB, fsys)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(statuses)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
				for _, s := range statuses {
					applied := "-"
					if !s.AppliedAt.IsZero() {
						applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.State, applied, s.Path)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print status as JSON")
	return cmd
}

func versionCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "version <YYYYMMDDHHMMSS>",
		Short: "Migrate up or down to the given version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := migrate.ParseVersion(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd, open, func(ctx context.Context, sqlDB *sql.DB, fsys fs.FS) error {
				results, err := migrate.MigrateToVersion(ctx, sqlDB, fsys, target)
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Write an empty reversible migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = migrate.DefaultDir
			}
			path, err := migrate.CreateSQLMigration(dir, args[0])
			if err != nil {
				return fmt.Errorf("create migration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check migration filenames and goose annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys, err := source(cmd)
			if err != nil {
				return err
			}
			if err := migrate.Validate(fsys); err != nil {
				return fmt.Errorf("migration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
			return nil
		},
	}
}

func printResults(out io.Writer, results []migrate.Result) {
	if len(results) == 0 {
		fmt.Fprintln(out, "no migrations to run")
		return
	}
	for _, r := range results {
		fmt.Fprintf(out, "%-4s %d %s (%s)\n", r.Direction, r.Version, r.Path, r.Duration)
	}
}

func openDatabase(ctx context.Context) (*sql.DB, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("resource not working: database: %w", err)
	}
	if dbClient.Driver() == db.DriverSQLite {
		_ = dbClient.Close()
		return nil, nil, fmt.Errorf("goose migrations target postgres; sqlite schemas are built from models")
	}
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("resource not working: sql database: %w", err), dbClient.Close())
	}
	logg.Info(ctx, "migrate ready")
	return sqlDB, dbClient.Close, nil
}
