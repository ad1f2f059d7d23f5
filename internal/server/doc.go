// Package server serves the resource manager over HTTP: listing available
// and installed resources, triggering downloads, and exporting Prometheus
// metrics. It can also follow edits to the user list made by other
// processes.
package server
