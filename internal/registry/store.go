package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ocrd-go/resmgr/internal/catalog"
	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/ocrd-go/resmgr/internal/discovery"
	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// UserListHeader is written at the top of the user list on every save.
const UserListHeader = `# Private resource list. Entries here take precedence over the bundled list.
# Entries with url "???" were found on disk and registered automatically.
# Consider contributing resources you add here upstream.`

// TempSuffix is appended to the user list path during an atomic save.
const TempSuffix = ".tmp"

// Store is the registry of known resources per tool. It owns the merged
// in-memory list and persists it to the user list. A Store is not safe for
// concurrent use.
type Store struct {
	settings config.Settings
	log      *zap.Logger
	resolver *location.Resolver
	intro    discovery.ToolIntrospector
	scanner  *discovery.Scanner
	bundled  []byte
	skipInit bool
	now      func() time.Time

	db       manifest.List
	userList string
	stale    error // last Reload failure, cleared by a successful Reload
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithIntrospector sets how tools are asked about themselves.
func WithIntrospector(intro discovery.ToolIntrospector) Option {
	return func(s *Store) { s.intro = intro }
}

// WithResolver sets the location resolver. Defaults to one over the
// store's settings.
func WithResolver(r *location.Resolver) Option {
	return func(s *Store) { s.resolver = r }
}

// WithScanner sets the search path scanner used for dynamic discovery.
func WithScanner(sc *discovery.Scanner) Option {
	return func(s *Store) { s.scanner = sc }
}

// WithBundledList replaces the built-in default list.
func WithBundledList(data []byte) Option {
	return func(s *Store) { s.bundled = data }
}

// WithClock sets the time source used for stub descriptions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// SkipInit leaves the store empty: neither list is loaded and the user list
// is not created.
func SkipInit() Option {
	return func(s *Store) { s.skipInit = true }
}

// New builds a store. Unless SkipInit is given it loads the bundled list,
// creates the user list if missing, and loads the user list on top so user
// entries come first.
func New(settings config.Settings, opts ...Option) (*Store, error) {
	s := &Store{
		settings: settings,
		bundled:  catalog.Bundled(),
		now:      time.Now,
		db:       manifest.List{},
		userList: settings.UserListPath(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("registry")
	if s.resolver == nil {
		s.resolver = location.NewResolver(settings, s.log)
	}
	if s.intro == nil {
		s.intro = discovery.NewExecIntrospector(s.log)
	}
	if s.scanner == nil {
		s.scanner = discovery.NewScanner(s.intro, s.log)
	}

	s.log.Info("resource registry paths",
		zap.String("data_home", settings.DataHome),
		zap.String("config_home", settings.ConfigHome),
		zap.String("user_list", s.userList))

	if s.skipInit {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the in-memory list from the bundled list and the user
// list, creating the latter if it does not exist. On failure the previous
// contents are kept and Save refuses to write until a Reload succeeds.
func (s *Store) Reload() error {
	db, err := s.loadAll()
	if err != nil {
		s.stale = err
		return err
	}
	s.db = db
	s.stale = nil
	return nil
}

func (s *Store) loadAll() (manifest.List, error) {
	db := manifest.List{}
	bundled, err := parseValidated(s.bundled, catalog.Origin)
	if err != nil {
		return nil, err
	}
	prependInto(db, bundled)
	Dedup(db)

	if _, err := os.Stat(s.userList); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeList(db); err != nil {
			return nil, err
		}
	}
	s.log.Info("loading resources", zap.String("path", s.userList))
	user, err := readList(s.userList)
	if err != nil {
		return nil, err
	}
	prependInto(db, user)
	return Dedup(db), nil
}

// UserListPath returns the path the store persists to.
func (s *Store) UserListPath() string { return s.userList }

// Resolver returns the location resolver the store uses.
func (s *Store) Resolver() *location.Resolver { return s.resolver }

// Introspector returns the tool introspector the store uses.
func (s *Store) Introspector() discovery.ToolIntrospector { return s.intro }

// Load merges the list at path into the store, its entries ahead of the
// existing ones per tool. A missing file is an empty list.
func (s *Store) Load(path string) error {
	s.log.Info("loading resources", zap.String("path", path))
	list, err := readList(path)
	if err != nil {
		return err
	}
	s.prepend(list)
	return nil
}

func (s *Store) prepend(list manifest.List) { prependInto(s.db, list) }

// prependInto puts the entries of list ahead of those already in db.
func prependInto(db, list manifest.List) {
	for tool, descs := range list {
		merged := make([]manifest.Descriptor, 0, len(descs)+len(db[tool]))
		merged = append(merged, descs...)
		merged = append(merged, db[tool]...)
		db[tool] = merged
	}
}

// Save deduplicates the store and writes it to the user list, prefixed
// with UserListHeader.
func (s *Store) Save() error {
	if s.stale != nil {
		return fmt.Errorf("not overwriting %s after failed reload: %w", s.userList, s.stale)
	}
	Dedup(s.db)
	return s.writeList(s.db)
}

func (s *Store) writeList(list manifest.List) error {
	s.log.Info("saving resources", zap.String("path", s.userList))

	out := make(manifest.List, len(list))
	for tool, descs := range list {
		normalized := make([]manifest.Descriptor, len(descs))
		for i, d := range descs {
			d.Type = d.ResourceType()
			normalized[i] = d
		}
		out[tool] = normalized
	}
	body, err := manifest.MarshalList(out)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(UserListHeader)
	buf.WriteString("\n")
	buf.Write(body)

	if err := os.MkdirAll(filepath.Dir(s.userList), location.DirPermNormal); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmp := s.userList + TempSuffix
	if err := os.WriteFile(tmp, buf.Bytes(), location.FilePermNormal); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.userList); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", s.userList, err)
	}
	return nil
}

// Tools returns the names of every tool with an entry, sorted.
func (s *Store) Tools() []string {
	tools := make([]string, 0, len(s.db))
	for tool := range s.db {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return tools
}

// Find returns the first descriptor named name for tool.
func (s *Store) Find(tool, name string) (manifest.Descriptor, bool) {
	for _, d := range s.db[tool] {
		if d.Name == name {
			return d, true
		}
	}
	return manifest.Descriptor{}, false
}

// FindURL returns the first descriptor of tool fetched from url.
func (s *Store) FindURL(tool, url string) (manifest.Descriptor, bool) {
	for _, d := range s.db[tool] {
		if d.URL == url {
			return d, true
		}
	}
	return manifest.Descriptor{}, false
}

// Dedup keeps only the first descriptor per name within each tool,
// preserving order. It modifies db in place and returns it.
func Dedup(db manifest.List) manifest.List {
	for tool, descs := range db {
		seen := make(map[string]bool, len(descs))
		kept := make([]manifest.Descriptor, 0, len(descs))
		for _, d := range descs {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			kept = append(kept, d)
		}
		db[tool] = kept
	}
	return db
}

// readList reads and validates the list at path. A missing file yields an
// empty list.
func readList(path string) (manifest.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return manifest.List{}, nil
		}
		return nil, fmt.Errorf("reading resource list %s: %w", path, err)
	}
	return parseValidated(data, path)
}

func parseValidated(data []byte, origin string) (manifest.List, error) {
	result, err := manifest.ValidateList(data)
	if err != nil {
		return nil, fmt.Errorf("resource list %s: %w", origin, err)
	}
	if !result.Valid {
		return nil, &SchemaError{Origin: origin, Issues: result.Issues}
	}
	return manifest.ParseList(data)
}
