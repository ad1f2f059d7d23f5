// Package registry is the store of known resources per tool. It merges the
// bundled list with the user list (user entries first), answers what is
// available and what is installed, and registers stubs for unknown
// resources found on disk.
//
// A Store is owned by one caller at a time.
package registry
