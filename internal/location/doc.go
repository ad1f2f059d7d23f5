// Package location computes where a processor's resources may live and
// enumerates what is installed there. Lookup order is the working
// directory, the per-tool <TOOL>_PATH variable, the per-user data home, the
// system resource root and the tool's module directory.
package location
