package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/whiteboard/internal/config"
	"github.com/conneroisu/whiteboard/internal/history"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the configured routes",
	Long: `List the configured routes in priority order: when several patterns match
a fragment, the one listed first wins.

Examples:
  whiteboard routes                  # Table of routes
  whiteboard routes -o json          # Routes as JSON
  whiteboard routes --match notes/1  # Show which route handles a fragment`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

var (
	routesFlags *StandardFlags
	routesMatch string
)

func init() {
	rootCmd.AddCommand(routesCmd)

	routesFlags = AddStandardFlags(routesCmd, "output")
	routesCmd.Flags().StringVar(&routesMatch, "match", "", "Show only the route handling this fragment")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	routes, err := prioritized(cfg)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("match") {
		fragment := history.NormalizeFragment(routesMatch)
		var hit []config.RouteConfig
		for _, r := range routes {
			if r.matcher.Match(fragment) {
				hit = append(hit, r.RouteConfig)
				break
			}
		}
		if len(hit) == 0 {
			return fmt.Errorf("no route matches %q", fragment)
		}
		return printRoutes(cmd, hit)
	}

	list := make([]config.RouteConfig, len(routes))
	for i, r := range routes {
		list[i] = r.RouteConfig
	}
	return printRoutes(cmd, list)
}

type configuredRoute struct {
	config.RouteConfig
	matcher history.Matcher
}

// prioritized returns the routes in the order the router tries them, which
// is the reverse of declaration.
func prioritized(cfg *config.Config) ([]configuredRoute, error) {
	matchers, err := cfg.Matchers()
	if err != nil {
		return nil, err
	}
	out := make([]configuredRoute, 0, len(matchers))
	for i := len(matchers) - 1; i >= 0; i-- {
		out = append(out, configuredRoute{RouteConfig: cfg.Routes[i], matcher: matchers[i]})
	}
	return out, nil
}

func printRoutes(cmd *cobra.Command, routes []config.RouteConfig) error {
	w := cmd.OutOrStdout()
	if routesFlags.OutputFormat != FormatTable {
		return writeStructured(w, routesFlags.OutputFormat, routes)
	}

	if len(routes) == 0 {
		if !routesFlags.Quiet {
			fmt.Fprintln(w, "No routes configured")
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tMATCH\tTEMPLATE\tTITLE")
	for _, r := range routes {
		match := r.Match
		if match == "" {
			match = history.KindRegex
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Pattern, match, r.Template, r.Title)
	}
	return tw.Flush()
}
