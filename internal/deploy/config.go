package deploy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ocrd-go/resmgr/internal/branding"
	"go.yaml.in/yaml/v3"
)

// Mode is how a tool is run on a host.
type Mode string

const (
	ModeNative Mode = "native"
	ModeDocker Mode = "docker"
)

// Config describes a processing deployment: the hosts tools run on and the
// database and message queue they share.
type Config struct {
	Queue    ServiceConfig `yaml:"process_queue"`
	Database ServiceConfig `yaml:"database"`
	Hosts    []HostConfig  `yaml:"hosts"`
}

// HostConfig is one machine and the tools deployed to it.
type HostConfig struct {
	Address  string             `yaml:"address"`
	Username string             `yaml:"username"`
	Password string             `yaml:"password,omitempty"`
	KeyPath  string             `yaml:"path_to_privkey,omitempty"`
	Tools    []ToolDeployConfig `yaml:"deploy_processors"`
}

// ToolDeployConfig says how many instances of a tool to run and how.
type ToolDeployConfig struct {
	Name      string `yaml:"name"`
	Instances int    `yaml:"number_of_instance"`
	Mode      Mode   `yaml:"deploy_type"`
}

// SSHConfig is how to log into the host running a service.
type SSHConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	KeyPath  string `yaml:"path_to_privkey,omitempty"`
}

// Credentials authenticate against a service.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ServiceConfig locates a database or message queue container.
type ServiceConfig struct {
	Address     string      `yaml:"address"`
	Port        int         `yaml:"port"`
	SSH         SSHConfig   `yaml:"ssh"`
	Credentials Credentials `yaml:"credentials"`
}

// Native returns the host's tools deployed natively.
func (h HostConfig) Native() []ToolDeployConfig { return h.byMode(ModeNative) }

// Docker returns the host's tools deployed in containers.
func (h HostConfig) Docker() []ToolDeployConfig { return h.byMode(ModeDocker) }

func (h HostConfig) byMode(m Mode) []ToolDeployConfig {
	var out []ToolDeployConfig
	for _, t := range h.Tools {
		if t.Mode == m {
			out = append(out, t)
		}
	}
	return out
}

// ParseConfig decodes and validates a deployment config. Every violation
// is reported, joined into one error.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing deployment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseConfigFile reads and parses the deployment config at path.
func ParseConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deployment config: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the config, returning all violations joined.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs, c.Queue.validate("process_queue")...)
	errs = append(errs, c.Database.validate("database")...)
	if len(c.Hosts) == 0 {
		errs = append(errs, errors.New("hosts: at least one host is required"))
	}
	for i, h := range c.Hosts {
		errs = append(errs, h.validate(fmt.Sprintf("hosts[%d]", i))...)
	}
	return errors.Join(errs...)
}

func (h HostConfig) validate(where string) []error {
	var errs []error
	if h.Address == "" {
		errs = append(errs, fmt.Errorf("%s: address is required", where))
	}
	if h.Username == "" {
		errs = append(errs, fmt.Errorf("%s: username is required", where))
	}
	if h.Password == "" && h.KeyPath == "" {
		errs = append(errs, fmt.Errorf("%s: neither password nor path_to_privkey given", where))
	}
	for i, t := range h.Tools {
		at := fmt.Sprintf("%s.deploy_processors[%d]", where, i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", at))
		} else if !strings.HasPrefix(t.Name, branding.ToolPrefix()) {
			errs = append(errs, fmt.Errorf("%s: %q does not start with %q", at, t.Name, branding.ToolPrefix()))
		}
		if t.Instances < 1 {
			errs = append(errs, fmt.Errorf("%s: number_of_instance must be at least 1", at))
		}
		if t.Mode != ModeNative && t.Mode != ModeDocker {
			errs = append(errs, fmt.Errorf("%s: deploy_type must be %q or %q, got %q", at, ModeNative, ModeDocker, t.Mode))
		}
	}
	return errs
}

func (s ServiceConfig) validate(where string) []error {
	var errs []error
	if s.Address == "" {
		errs = append(errs, fmt.Errorf("%s: address is required", where))
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: port %d out of range", where, s.Port))
	}
	if s.SSH.Username == "" {
		errs = append(errs, fmt.Errorf("%s.ssh: username is required", where))
	}
	if s.SSH.Password == "" && s.SSH.KeyPath == "" {
		errs = append(errs, fmt.Errorf("%s.ssh: neither password nor path_to_privkey given", where))
	}
	if s.Credentials.Username == "" || s.Credentials.Password == "" {
		errs = append(errs, fmt.Errorf("%s.credentials: username and password are required", where))
	}
	return errs
}
