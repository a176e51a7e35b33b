// Package config loads the configuration of a served store from YAML.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendNone   = ""
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config describes a served document store.
type Config struct {
	Listen   string `yaml:"listen" json:"listen"`
	LogLevel string `yaml:"log_level" json:"log_level"`
	// State is a YAML or JSON file holding the initial document.
	State   string        `yaml:"state" json:"state"`
	Metrics bool          `yaml:"metrics" json:"metrics"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
	MCP     MCPConfig     `yaml:"mcp" json:"mcp"`
	// Agents maps an agent name to the actions granted to it.
	Agents map[string][]string `yaml:"agents" json:"agents"`
}

// JournalConfig selects and configures the journal backend.
type JournalConfig struct {
	Backend       string      `yaml:"backend" json:"backend"`
	SnapshotEvery uint64      `yaml:"snapshot_every" json:"snapshot_every"`
	Redact        []string    `yaml:"redact" json:"redact"`
	Encryption    *Encryption `yaml:"encryption" json:"encryption"`
	Redis         RedisConfig `yaml:"redis" json:"redis"`
}

// Encryption holds base64 encoded AES-256 keys.
type Encryption struct {
	Key          string   `yaml:"key" json:"key"`
	FallbackKeys []string `yaml:"fallback_keys" json:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// MCPConfig configures the MCP surface.
type MCPConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Listen    string `yaml:"listen" json:"listen"`
	// Agent restricts the exposed tools to the actions granted to this agent.
	Agent string `yaml:"agent" json:"agent"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		MCP: MCPConfig{
			Transport: "stdio",
			Listen:    ":8081",
		},
	}
}

// Load reads the configuration at path over the defaults. Environment variables
// in the file (${VAR}) are expanded. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if cfg.State != "" && !filepath.IsAbs(cfg.State) {
		cfg.State = filepath.Join(filepath.Dir(path), cfg.State)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Validate checks the cross-field rules of the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Journal.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Journal.Redis.Addr == "" {
			errs = append(errs, errors.New("journal.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal backend %q", c.Journal.Backend))
	}
	if c.Journal.Encryption != nil {
		if _, _, err := c.Journal.Encryption.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.MCP.Transport {
	case "", "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("unknown mcp transport %q", c.MCP.Transport))
	}
	if c.MCP.Agent != "" {
		if _, ok := c.Agents[c.MCP.Agent]; !ok {
			errs = append(errs, fmt.Errorf("mcp.agent %q has no entry in agents", c.MCP.Agent))
		}
	}
	return errors.Join(errs...)
}

// Grants returns the actions granted to agent. An empty agent is unrestricted.
func (c Config) Grants(agent string) ([]string, error) {
	if agent == "" {
		return nil, nil
	}
	grants, ok := c.Agents[agent]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", agent)
	}
	return grants, nil
}

// Keys decodes the active and fallback keys.
func (e *Encryption) Keys() (active []byte, fallback [][]byte, err error) {
	active, err = decodeKey("journal.encryption.key", e.Key)
	if err != nil {
		return nil, nil, err
	}
	for i, k := range e.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("journal.encryption.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(field, s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s: must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}

// LoadDocument reads a YAML or JSON document. A missing path yields an empty document.
func LoadDocument(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return doc, nil
	}
	// Default to YAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
