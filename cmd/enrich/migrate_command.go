package main

import (
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/johnquangdev/podcast-assistant/internal/infrastructure/database"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var (
		dir   string
		down  bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending migrations from the migrations directory with sql-migrate.
--down rolls back instead; --max limits how many migrations are applied (0 = all).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if down && limit == 0 {
				return fmt.Errorf("--down requires --max to avoid dropping the whole schema")
			}

			db, err := database.NewPostgresDB(cfg)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			direction := migrate.Up
			if down {
				direction = migrate.Down
			}
			n, err := database.Migrate(db, dir, direction, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", database.DefaultMigrationsDir, "Migrations directory")
	cmd.Flags().BoolVar(&down, "down", false, "Roll back migrations")
	cmd.Flags().IntVar(&limit, "max", 0, "Maximum number of migrations to apply (0 = all)")
	return cmd
}
