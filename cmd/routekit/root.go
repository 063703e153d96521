package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "routekit",
	Short: "Typed request pipeline server",
	Long: `routekit serves typed endpoints: every request is validated against
its input contracts, resolved services are injected, an authorizer runs,
and the handler's response is checked against the output contract.

Quick start:
  routekit serve     # Start the HTTP server
  routekit routes    # List routes and their deployment names
  routekit validate  # Validate configuration
  routekit keygen    # Generate a key pair for sealed messages`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "routekit.yaml", "config file path")
}
