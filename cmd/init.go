package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/whiteboard/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a starter page, templates and configuration",
	Long: `Create a starter whiteboard project in dir (default: the current directory):
a page with navigation links and a root element, two route templates, and a
.whiteboard.yml routing them. Existing files are kept unless --force is given.

Examples:
  whiteboard init              # Initialize the current directory
  whiteboard init my-board     # Initialize a new directory
  whiteboard init --force      # Overwrite existing files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

const starterPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Whiteboard</title>
</head>
<body>
  <nav>
    <a class="module" data-module="link" id="nav-home" data-href="/" href="/">Home</a>
    <a class="module" data-module="link" id="nav-about" data-href="about" href="/about">About</a>
  </nav>
  <main id="app"></main>
  <footer class="module" data-module="relay" data-messages="route"></footer>
</body>
</html>
`

const starterHome = `<h1>Home</h1>
<p>Edit templates/home.html and the page reloads.</p>
`

const starterAbout = `<h1>About</h1>
<div class="module" data-module="partial" data-template="about-details.html"></div>
`

const starterAboutDetails = `<p>This block is a partial module loaded from templates/about-details.html.</p>
`

func starterConfig() *config.Config {
	cfg := config.Default()
	cfg.Routes = []config.RouteConfig{
		{Pattern: "^$", Template: "home.html", Title: "Home"},
		{Pattern: "about", Match: "exact", Template: "about.html", Title: "About"},
	}
	return cfg
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) > 0 {
		projectDir = args[0]
	}

	cfg := starterConfig()
	templates := filepath.Join(projectDir, cfg.App.Templates)
	if err := os.MkdirAll(templates, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(projectDir, cfg.App.Page), starterPage},
		{filepath.Join(templates, "home.html"), starterHome},
		{filepath.Join(templates, "about.html"), starterAbout},
		{filepath.Join(templates, "about-details.html"), starterAboutDetails},
	}

	out := cmd.OutOrStdout()
	for _, f := range files {
		wrote, err := writeIfAbsent(f.path, func(path string) error {
			return os.WriteFile(path, []byte(f.content), 0o644)
		})
		if err != nil {
			return err
		}
		report(out, f.path, wrote)
	}

	cfgPath := filepath.Join(projectDir, config.FileName)
	wrote, err := writeIfAbsent(cfgPath, func(path string) error {
		return config.Write(path, cfg)
	})
	if err != nil {
		return err
	}
	report(out, cfgPath, wrote)

	fmt.Fprintln(out, "\nRun 'whiteboard serve' to open the page.")
	return nil
}

func writeIfAbsent(path string, write func(string) error) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	if err := write(path); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func report(w io.Writer, path string, wrote bool) {
	if wrote {
		fmt.Fprintf(w, "  created %s\n", path)
	} else {
		fmt.Fprintf(w, "  kept    %s\n", path)
	}
}
