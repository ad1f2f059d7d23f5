// Package doctor checks the resource manager's environment: that resource
// locations exist and are writable, that the user list parses and validates,
// and which processors on the search path describe themselves.
package doctor
