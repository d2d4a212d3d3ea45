package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/vidembed/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default .vidembed.yml",
	Long: `Write a configuration file with every default spelled out, in the current
directory or in dir. With --example a sample page using each built-in tag is
created too.

Examples:
  vidembed init
  vidembed init my-site --example
  vidembed init --force            # Overwrite an existing file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce   bool
	initExample bool
)

const examplePage = `---
title: Embeds
---
# YouTube

{% youtube dQw4w9WgXcQ %}

# Vimeo

{% vimeo 76979871 %}

# blip.tv

{% bliptv AYLCsikC %}
`

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVar(&initExample, "example", false, "Create an example page")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	path := filepath.Join(dir, config.DefaultFileName)
	if err := config.Default().WriteFile(path, initForce); err != nil {
		return err
	}
	fmt.Fprintf(out, "📝 Wrote %s\n", path)

	if initExample {
		page := filepath.Join(dir, "index.md")
		if _, err := os.Stat(page); err == nil && !initForce {
			fmt.Fprintf(out, "Skipping %s, it already exists\n", page)
		} else {
			if err := os.WriteFile(page, []byte(examplePage), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", page, err)
			}
			fmt.Fprintf(out, "📝 Wrote %s\n", page)
		}
	}

	fmt.Fprintln(out, "Run 'vidembed build' to expand the site or 'vidembed serve' to preview it.")
	return nil
}
