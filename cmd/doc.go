// Package cmd implements the vidembed command line.
//
// # Available Commands
//
//   - render: render one embed tag
//   - expand: expand directives in a single file or standard input
//   - build: expand a whole site into the destination directory
//   - watch: rebuild the site on changes
//   - serve: preview the site with live reload
//   - list: list registered tags
//   - check: verify that every tag renders one well-formed iframe
//   - init: write a default .vidembed.yml
//   - version: print build information
//
// # Configuration
//
// Configuration is resolved with the following precedence:
//  1. Command-line flags (--config, --log-level, command flags)
//  2. VIDEMBED_CONFIG_FILE environment variable, a custom config file path
//  3. Individual environment variables (VIDEMBED_SITE_SOURCE, VIDEMBED_SITE_UNKNOWN_TAGS, ...)
//  4. Configuration file (.vidembed.yml)
//
// # Command Examples
//
//	vidembed render youtube dQw4w9WgXcQ
//	vidembed build --clean -o json
//	vidembed serve -p 8080
package cmd
