// Package commands provides CLI commands for the admin tool
package commands

import (
	"database/sql"
	"fmt"
	"os"

	"dailyquiz/internal/database"
	"dailyquiz/internal/observability"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(manager *database.Manager, db *sql.DB, databaseURL string, logger *observability.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the daily quiz service.

Available commands:
  migrate   - Apply pending schema migrations
  rollback  - Roll back every schema migration
  status    - Show the schema version and connection details`,
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := manager.RunMigrations(cmd.Context(), databaseURL); err != nil {
				logger.Error(cmd.Context(), "Migration failed", err, map[string]interface{}{"db_url": MaskDatabaseURL(databaseURL)})
				return err
			}
			return printMigrationStatus(cmd, manager, databaseURL)
		},
	})

	dbCmd.AddCommand(rollbackCmd(manager, databaseURL))

	dbCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show schema version and connection details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", os.Getenv("QUIZ_CONFIG_FILE"))
			fmt.Fprintf(out, "Database:    %s\n", MaskDatabaseURL(databaseURL))
			fmt.Fprintf(out, "Connection:  %s\n", getDatabaseInfo(cmd.Context(), db))
			return printMigrationStatus(cmd, manager, databaseURL)
		},
	})

	return dbCmd
}

func rollbackCmd(manager *database.Manager, databaseURL string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back every schema migration (drops all quiz data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "This drops every quiz table. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			if err := manager.MigrateDown(cmd.Context(), databaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, manager *database.Manager, databaseURL string) error {
	version, dirty, err := manager.MigrationStatus(databaseURL)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema:      version %d (%s)\n", version, state)
	return nil
}
