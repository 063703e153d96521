package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/routekit/bootstrap"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the routekit HTTP server.

The server will:
  - Load configuration from routekit.yaml (or --config)
  - Or load configuration from ROUTEKIT_* environment variables
  - Bind every typed route and the health, version and metrics endpoints
  - Open the database on the first request that needs it

Environment variables (for Docker deployments):
  ROUTEKIT_SERVER_PORT       - Server port (default: 8080)
  ROUTEKIT_DATABASE_DSN      - Database path (default: routekit.db)
  ROUTEKIT_AUTH_JWT_SECRET   - Session token secret
  ROUTEKIT_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  routekit serve
  routekit serve --config /etc/routekit/config.yaml
  routekit serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hotReload,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run(context.Background())
}
