// Package manifest defines resource descriptors, resource lists and the tool
// descriptions processors report about themselves. Resource lists are
// validated against an embedded JSON Schema before use.
package manifest
