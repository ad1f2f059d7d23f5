// Package manager drives acquisition on behalf of the command line and the
// HTTP server: it picks the resources to fetch from the registry (or takes
// a URL directly), works out the target directory from the requested
// location and the tool's policy, runs the transfers, and records the
// results back into the registry.
package manager
