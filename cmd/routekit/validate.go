package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/routekit/adapters/sqlite"
	"github.com/artpar/routekit/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the routekit configuration.

Checks:
  - YAML syntax is valid
  - ROUTEKIT_* overrides are well formed
  - Values are in range
  - Database opens and migrates (optional)

Examples:
  routekit validate
  routekit validate --config /etc/routekit/config.yaml --check-database`,
	RunE: runValidate,
}

var (
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check that the database opens and migrates")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	source := cfgFile
	if _, err := os.Stat(cfgFile); err != nil {
		source = "environment"
	}
	fmt.Fprintf(out, "Validating %s...\n\n", source)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.DSN)
	fmt.Fprintf(out, "  %s Logging: %s (%s)\n", checkMark, cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  %s Metrics: %s\n", checkMark, cfg.Metrics.Path)
	}
	if cfg.RateLimit.Enabled {
		fmt.Fprintf(out, "  %s Rate limit: %.2f rps, burst %d\n", checkMark, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	if validateCheckDatabase {
		if err := checkDatabase(cfg.Database.DSN); err != nil {
			fmt.Fprintf(out, "  %s Database ready\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Database ready\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkDatabase(dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
