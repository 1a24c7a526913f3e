package mcp

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidServerConfig reports a server configuration that cannot be used:
// unrecognized keys, missing transport selection, or both transports at once.
var ErrInvalidServerConfig = errors.New("invalid mcp server config")

// ServerConfig describes how to reach one remote tool server. Exactly one
// transport is selected: URL for streamable HTTP or Command for a stdio
// subprocess.
type ServerConfig struct {
	URL     string            `mapstructure:"url" yaml:"url,omitempty" json:"url,omitempty"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty" json:"headers,omitempty"`

	Command string            `mapstructure:"command" yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string          `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
	Cwd     string            `mapstructure:"cwd" yaml:"cwd,omitempty" json:"cwd,omitempty"`
	Env     map[string]string `mapstructure:"env" yaml:"env,omitempty" json:"env,omitempty"`
}

// Validate checks that exactly one transport is configured.
func (c ServerConfig) Validate() error {
	switch {
	case c.URL == "" && c.Command == "":
		return fmt.Errorf("%w: expected either 'url' or 'command'", ErrInvalidServerConfig)
	case c.URL != "" && c.Command != "":
		return fmt.Errorf("%w: 'url' and 'command' are mutually exclusive", ErrInvalidServerConfig)
	}
	return nil
}

// ParseServerConfig decodes a raw key/value map into a ServerConfig. Unknown
// keys fail fast, naming them, so a typo never silently degrades into a
// connection attempt with missing settings. String values of the form
// env('VAR_NAME') are interpolated from the environment; a missing variable
// is an error.
func ParseServerConfig(raw map[string]any) (ServerConfig, error) {
	var cfg ServerConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return ServerConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return ServerConfig{}, fmt.Errorf("%w: %v", ErrInvalidServerConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.interpolateEnv(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

var envRefPattern = regexp.MustCompile(`^env\(['"]([A-Z0-9_]+)['"]\)$`)

func (c *ServerConfig) interpolateEnv() error {
	fields := []*string{&c.URL, &c.Command, &c.Cwd}
	for _, f := range fields {
		v, err := resolveEnvRef(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	for i, a := range c.Args {
		v, err := resolveEnvRef(a)
		if err != nil {
			return err
		}
		c.Args[i] = v
	}
	for _, m := range []map[string]string{c.Headers, c.Env} {
		for k, val := range m {
			v, err := resolveEnvRef(val)
			if err != nil {
				return err
			}
			m[k] = v
		}
	}
	return nil
}

func resolveEnvRef(s string) (string, error) {
	match := envRefPattern.FindStringSubmatch(s)
	if match == nil {
		return s, nil
	}
	val, ok := os.LookupEnv(match[1])
	if !ok {
		return "", fmt.Errorf("%w: missing environment variable %s", ErrInvalidServerConfig, match[1])
	}
	return val, nil
}

// LoadServers reads a YAML file mapping server names to configurations, for
// example:
//
//	search:
//	  url: https://tools.example.com/mcp
//	  headers:
//	    Authorization: env('SEARCH_TOKEN')
//	python-runner:
//	  command: python
//	  args: ["-m", "my_mcp_server"]
func LoadServers(path string) (map[string]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcp servers file: %w", err)
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse mcp servers file: %w", err)
	}
	servers := make(map[string]ServerConfig, len(raw))
	for name, rawCfg := range raw {
		cfg, err := ParseServerConfig(rawCfg)
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		servers[name] = cfg
	}
	return servers, nil
}
