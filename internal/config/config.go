package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "resmgr"
	fileType = "yaml"
)

// Keys understood by Load, Get and Set.
const (
	KeyDataHome        = "data_home"
	KeyConfigHome      = "config_home"
	KeySystemDir       = "system_dir"
	KeyCwd             = "cwd"
	KeyDownloadTimeout = "download_timeout"
	KeyLogLevel        = "log_level"
	KeyListenAddress   = "listen_address"
)

// Settings is every option the resolver, the registry store and the
// acquisition engine consult. It is built once and passed explicitly.
type Settings struct {
	// DataHome is the per-user data base directory ($XDG_DATA_HOME).
	DataHome string
	// ConfigHome is the per-user config base directory ($XDG_CONFIG_HOME).
	ConfigHome string
	// SystemDir is the system-wide resource root.
	SystemDir string
	// Cwd overrides the working directory. Empty means os.Getwd.
	Cwd string
	// DownloadTimeout bounds a single HTTP transfer. Zero disables it.
	DownloadTimeout time.Duration
	LogLevel        string
	ListenAddress   string
}

// UserListPath returns the path of the user-editable resource list.
func (s Settings) UserListPath() string {
	return filepath.Join(s.ConfigHome, branding.ConfigSubdir(), branding.UserListFile())
}

// DataResourcesDir returns the per-user resource root.
func (s Settings) DataResourcesDir() string {
	return filepath.Join(s.DataHome, branding.ResourcesDir())
}

// WorkingDir returns Cwd when set, the process working directory otherwise.
func (s Settings) WorkingDir() string {
	if s.Cwd != "" {
		return s.Cwd
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Defaults returns settings rooted at home, with nothing read from the
// environment. Tests use it to build isolated trees.
func Defaults(home string) Settings {
	return Settings{
		DataHome:      filepath.Join(home, ".local", "share"),
		ConfigHome:    filepath.Join(home, ".config"),
		SystemDir:     branding.SystemResourcesDir(),
		LogLevel:      "info",
		ListenAddress: "127.0.0.1:8901",
	}
}

// Dir returns the directory holding the user list and the settings file.
func Dir() string {
	return filepath.Join(newViper().GetString(KeyConfigHome), branding.ConfigSubdir())
}

// FilePath returns the full path to the settings file.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load reads settings from the environment and the optional settings file.
// Prefixed variables (RESMGR_DATA_HOME) win over the XDG ones.
func Load() (Settings, error) {
	v := newViper()

	v.SetConfigFile(filepath.Join(v.GetString(KeyConfigHome), branding.ConfigSubdir(), fileName+"."+fileType))
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Settings{}, fmt.Errorf("reading settings file: %w", err)
		}
	}

	timeout, err := parseTimeout(v.GetString(KeyDownloadTimeout))
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		DataHome:        v.GetString(KeyDataHome),
		ConfigHome:      v.GetString(KeyConfigHome),
		SystemDir:       v.GetString(KeySystemDir),
		Cwd:             v.GetString(KeyCwd),
		DownloadTimeout: timeout,
		LogLevel:        v.GetString(KeyLogLevel),
		ListenAddress:   v.GetString(KeyListenAddress),
	}, nil
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	v := newViper()
	v.SetConfigFile(FilePath())
	v.SetConfigType(fileType)
	_ = v.ReadInConfig()
	return v.GetString(key)
}

// Set writes a config key-value pair and saves the settings file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	configFile := FilePath()

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType(fileType)
	_ = v.ReadInConfig()
	v.Set(key, value)

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	home := os.Getenv("HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	d := Defaults(home)

	v := viper.New()
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataHome, d.DataHome)
	v.SetDefault(KeyConfigHome, d.ConfigHome)
	v.SetDefault(KeySystemDir, d.SystemDir)
	v.SetDefault(KeyCwd, "")
	v.SetDefault(KeyDownloadTimeout, "")
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyListenAddress, d.ListenAddress)

	_ = v.BindEnv(KeyDataHome, branding.EnvVar(KeyDataHome), "XDG_DATA_HOME")
	_ = v.BindEnv(KeyConfigHome, branding.EnvVar(KeyConfigHome), "XDG_CONFIG_HOME")
	return v
}

// parseTimeout accepts a Go duration ("90s") or a bare number of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", KeyDownloadTimeout, raw, err)
	}
	return d, nil
}
