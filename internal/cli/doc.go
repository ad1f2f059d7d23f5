// Package cli defines the Cobra command tree for the resmgr CLI. Each file
// registers one top-level command with the root command. Commands build the
// registry, fetcher and manager from the loaded settings and only handle
// flag parsing and output formatting themselves.
package cli
