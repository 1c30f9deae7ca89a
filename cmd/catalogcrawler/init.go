package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/catalogcrawler/internal/config"
)

//go:embed templates/catalogcrawler.yaml
var siteTemplate []byte

// configFileName is where init writes when neither -o nor --user is given.
const configFileName = config.DefaultConfigFile

// errConfigExists is returned when init would replace a file without -f.
var errConfigExists = errors.New("site configuration already exists")

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter site configuration",
		Long: `Write a commented starter site configuration for crawl and extract.

The file sets the request rate and product limit applied to every store,
and shows how to add per-host headers, sitemap depth and size selectors.
crawl picks it up from the working directory, the home directory or the
user config directory, in that order.

Examples:
  # Write .catalogcrawler.yaml here
  catalogcrawler init

  # Write the per-user file under the XDG config directory
  catalogcrawler init --user

  # Write somewhere else, replacing what is there
  catalogcrawler init -o stores/sites.yaml -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName, "Path of the file to write")
	cmd.Flags().Bool("user", false, "Write the per-user file in the XDG config directory")
	cmd.Flags().BoolP("force", "f", false, "Replace an existing file")
	cmd.MarkFlagsMutuallyExclusive("output", "user")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	user, err := cmd.Flags().GetBool("user")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if user {
		path = config.UserConfigPath()
	}

	if err := writeSiteTemplate(path, force); err != nil {
		return err
	}
	printInitHints(cmd.OutOrStdout(), path)
	return nil
}

// writeSiteTemplate writes the embedded template to path, creating missing
// parent directories.
func writeSiteTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (pass -f to replace it)", errConfigExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, siteTemplate, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printInitHints(w io.Writer, path string) {
	fmt.Fprintf(w, "Wrote site configuration to %s\n\n", path)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Add an entry under \"sites\" for each store host")
	fmt.Fprintln(w, "  2. Set size_selectors where sizes are not found automatically")
	fmt.Fprintf(w, "  3. Run: catalogcrawler crawl -c %s <sitemap-url>\n", path)
}
