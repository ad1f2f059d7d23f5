package registry

import (
	"fmt"
	"path/filepath"

	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// stubTimeLayout renders the discovery timestamp in stub descriptions.
const stubTimeLayout = "2006-01-02 15:04:05.000000"

// AddStub registers the resource at path for tool in the user list. If the
// tool already has a descriptor with that name it is returned unchanged.
// Otherwise a descriptor is built with the given url (or "???"), an
// unknown version range, the size on disk and a note of where and when it
// was found; it is appended to the user list, which is saved and loaded
// back into the store.
func (s *Store) AddStub(tool, path, url, resType string) (manifest.Descriptor, error) {
	name := filepath.Base(path)
	if d, ok := s.Find(tool, name); ok {
		return d, nil
	}

	user, err := readList(s.userList)
	if err != nil {
		return manifest.Descriptor{}, err
	}
	for _, d := range user[tool] {
		if d.Name == name {
			return d, nil
		}
	}

	s.log.Info("resource not known, creating stub",
		zap.String("tool", tool), zap.String("name", name),
		zap.String("path", path), zap.String("user_list", s.userList))

	size, err := location.DirSize(path)
	if err != nil {
		return manifest.Descriptor{}, fmt.Errorf("sizing %s: %w", path, err)
	}
	if url == "" {
		url = manifest.Unknown
	}
	if resType == "" {
		resType = manifest.TypeFile
	}
	d := manifest.Descriptor{
		Name:         name,
		URL:          url,
		Description:  fmt.Sprintf("Found at %s on %s", s.resolver.LocationOf(path), s.now().Format(stubTimeLayout)),
		VersionRange: manifest.Unknown,
		Type:         resType,
		Size:         size,
	}
	user[tool] = append(user[tool], d)

	if err := s.writeList(Dedup(user)); err != nil {
		return manifest.Descriptor{}, err
	}
	if err := s.Load(s.userList); err != nil {
		return manifest.Descriptor{}, err
	}
	Dedup(s.db)
	return d, nil
}

// Record registers d for tool in the user list ahead of any descriptor of
// the same name, then loads the user list back into the store. It is used
// after a successful download so the registry reflects what was fetched.
func (s *Store) Record(tool string, d manifest.Descriptor) error {
	user, err := readList(s.userList)
	if err != nil {
		return err
	}
	d.Path = ""
	user[tool] = append([]manifest.Descriptor{d}, user[tool]...)
	if err := s.writeList(Dedup(user)); err != nil {
		return err
	}
	if err := s.Load(s.userList); err != nil {
		return err
	}
	Dedup(s.db)
	return nil
}
