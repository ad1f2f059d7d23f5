// Package config resolves the settings shared by every component: the XDG
// data and config homes, the system resource root, the working directory
// override and download timeouts. Values come from RESMGR_* variables, the
// standard XDG variables and an optional resmgr.yaml under the config home.
package config
