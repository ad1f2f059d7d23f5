// Package discovery finds processors on the executable search path and
// asks them what they are: their parameters, the resources they know about
// and where they look for them. Introspection sits behind ToolIntrospector
// so callers can substitute canned answers.
package discovery
