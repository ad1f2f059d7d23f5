// Package platform hides the filesystem differences between Unix and
// Windows that matter when copying resource trees and scanning for
// processor executables.
package platform
