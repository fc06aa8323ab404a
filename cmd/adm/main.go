// Package main provides the main entry point for the daily quiz admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"dailyquiz/cmd/adm/commands"
	"dailyquiz/internal/config"
	"dailyquiz/internal/database"
	"dailyquiz/internal/di"
	"dailyquiz/internal/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	// Set default config file if not already set
	if os.Getenv("QUIZ_CONFIG_FILE") == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv("QUIZ_CONFIG_FILE", path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set QUIZ_CONFIG_FILE environment variable: %v\n", err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, "dailyquiz-admin", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// No migrations here; `adm db migrate` applies them explicitly
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": commands.MaskDatabaseURL(cfg.Database.URL)})
		os.Exit(1)
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.InitializeWithDB(ctx, db); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Daily Quiz Administration Tool",
		Long: `Daily Quiz Administration Tool

A CLI for administering the daily quiz service.
Provides commands for quiz assignments, the question bank, per-user stats and the database schema.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.QuizCommands(container))
	rootCmd.AddCommand(commands.QuestionCommands(container))
	rootCmd.AddCommand(commands.StatsCommands(container))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, db, cfg.Database.URL, logger))

	exitCode := 0
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		exitCode = 1
	}
	if err := container.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Warning: failed to release resources", map[string]interface{}{"error": err.Error()})
	}
	os.Exit(exitCode)
}
