package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/whiteboard/internal/dom"
	"github.com/conneroisu/whiteboard/internal/server"
)

var renderCmd = &cobra.Command{
	Use:     "render [path]",
	Aliases: []string{"r"},
	Short:   "Print the page as routed at a path",
	Long: `Boot the configured page at path (default "/"), run its routes and start
its modules, and print the resulting HTML.

Examples:
  whiteboard render                  # Render the page at /
  whiteboard render /notes --body    # Print only the body content
  whiteboard render /notes -f out.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderBody bool
	renderFile string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().BoolVar(&renderBody, "body", false, "Print only the inner HTML of body")
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "Write to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	doc, err := server.Render(cfg, path, logger)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if renderFile != "" {
		f, err := os.Create(renderFile)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", renderFile, err)
		}
		defer f.Close()
		w = f
	}

	if renderBody {
		_, err = io.WriteString(w, dom.InnerHTML(doc.Body()))
		return err
	}
	return doc.Render(w)
}
