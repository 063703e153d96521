package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/routekit/bootstrap"
	"github.com/artpar/routekit/core/routes"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List routes",
	Long: `List every route the server binds, with its services and the
name used when the route is packaged as a standalone function.

Examples:
  routekit routes
  routekit routes --json`,
	RunE: runRoutes,
}

var routesJSON bool

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().BoolVar(&routesJSON, "json", false, "output as JSON")
}

type routeInfo struct {
	Route       string   `json:"route"`
	Function    string   `json:"function"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Services    []string `json:"services,omitempty"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
		LogOutput:  io.Discard,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}
	defer app.Config.Stop()

	var infos []routeInfo
	for _, r := range app.Routes.List() {
		fn, err := routes.DeploymentName(r.Route())
		if err != nil {
			return err
		}
		var services []string
		for _, p := range r.Services() {
			services = append(services, p.ServiceName())
		}
		infos = append(infos, routeInfo{
			Route:       r.Route(),
			Function:    fn,
			Description: r.Description(),
			Tags:        r.Tags(),
			Services:    services,
		})
	}

	out := cmd.OutOrStdout()
	if routesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tFUNCTION\tSERVICES\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Route, info.Function, strings.Join(info.Services, ","), info.Description)
	}
	return w.Flush()
}
