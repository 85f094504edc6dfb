package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

var errDSNRequired = errors.New("STOREFRONT_POSTGRES_DSN (or --dsn) is required")

// newRootCmd собирает CLI миграций: up, down, status.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var store *postgres.Store
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Storefront PostgreSQL schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg := v.GetString("config"); cfg != "" {
				v.SetConfigFile(cfg)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			dsn := strings.TrimSpace(v.GetString("postgres.dsn"))
			if dsn == "" {
				return errDSNRequired
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			var err error
			store, err = postgres.Open(ctx, dsn)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
	}

	root.PersistentFlags().String("dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	root.PersistentFlags().String("config", "", "config file with postgres.dsn")
	root.PersistentFlags().Duration("timeout", defaultTimeout, "timeout for the whole operation")
	_ = v.BindPFlag("postgres.dsn", root.PersistentFlags().Lookup("dsn"))
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	withTimeout := func(cmd *cobra.Command, fn func(ctx context.Context) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
		defer cancel()
		return fn(ctx)
	}

	var upSteps int
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTimeout(cmd, func(ctx context.Context) error {
				if err := store.MigrateUp(ctx, upSteps); err != nil {
					return fmt.Errorf("migrate up failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate up ok")
			})
		},
	}
	upCmd.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply (0=all)")

	var downSteps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTimeout(cmd, func(ctx context.Context) error {
				if err := store.MigrateDown(ctx, downSteps); err != nil {
					return fmt.Errorf("migrate down failed: %w", err)
				}
				return printStatus(ctx, cmd.OutOrStdout(), store, "migrate down ok")
			})
		},
	}
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTimeout(cmd, func(ctx context.Context) error {
				return printStatus(ctx, cmd.OutOrStdout(), store, "migration status")
			})
		},
	}

	root.AddCommand(upCmd, downCmd, statusCmd)
	return root
}

func printStatus(ctx context.Context, w io.Writer, store *postgres.Store, title string) error {
	status, err := store.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(w, "%s: version=%d applied=%d pending=%d\n", title, status.Version, status.Applied, len(status.Pending))
	for _, name := range status.Pending {
		_, _ = fmt.Fprintf(w, "  pending %s\n", name)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
