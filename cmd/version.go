package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/whiteboard/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform of this
binary.

Examples:
  whiteboard version              # Full version information
  whiteboard version --short      # Version only
  whiteboard version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	w := cmd.OutOrStdout()

	switch versionFormat {
	case "json", "yaml":
		return writeStructured(w, versionFormat, struct {
			version.Info `yaml:",inline"`
			IsRelease    bool `json:"is_release" yaml:"is_release"`
		}{info, info.IsRelease()})
	case "text":
		if versionShort {
			fmt.Fprintln(w, info.Short())
			return nil
		}
		fmt.Fprintln(w, info.String())
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", versionFormat)
	}
}
