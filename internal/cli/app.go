package cli

import (
	"path/filepath"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/discovery"
	"github.com/ocrd-go/resmgr/internal/fetch"
	"github.com/ocrd-go/resmgr/internal/manager"
	"github.com/ocrd-go/resmgr/internal/registry"
)

// newManager wires the registry, introspection cache and fetcher for the
// loaded settings.
func newManager() (*manager.Manager, error) {
	cachePath := filepath.Join(settings.ConfigHome, branding.ConfigSubdir(), discovery.CacheFileName)
	intro := discovery.NewCachedIntrospector(discovery.NewExecIntrospector(logger), cachePath, logger)

	store, err := registry.New(settings,
		registry.WithLogger(logger),
		registry.WithIntrospector(intro))
	if err != nil {
		return nil, err
	}
	fetcher := fetch.New(
		fetch.WithLogger(logger),
		fetch.WithTimeout(settings.DownloadTimeout))
	return manager.New(store, fetcher, logger), nil
}
