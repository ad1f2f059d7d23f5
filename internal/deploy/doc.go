// Package deploy reads the deployment description of a processing cluster:
// which hosts run which tools, natively or in containers, and where the
// shared database and queue live. The records are passive.
package deploy
