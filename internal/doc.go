// Package internal contains the implementation packages for vidembed.
//
// # Package Organization
//
//   - embed: Tag definitions and the iframe renderers for each provider
//   - registry: Name to renderer mapping, last registration wins
//   - directive: Parsing and expansion of {% name id %} directives
//   - errors: Unknown tag and syntax errors, error collection and overlay
//   - config: Viper backed configuration and provider definitions
//   - build: Site pipeline that expands pages on a pool of workers
//   - watcher: Debounced file system monitoring
//   - server: Preview server with live reload over WebSocket
//   - logging: Structured logging on log/slog
//   - version: Build information
//
// # Data Flow
//
// The registry is built from configuration and handed to a directive
// expander. The build pipeline runs the expander over every page of the
// site; the watcher triggers the pipeline on change and the server pushes
// the result to connected browsers.
package internal
