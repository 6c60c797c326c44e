// Package config loads hostcat configuration from YAML or CUE files.
//
// Both formats are unified with the embedded #Config schema (schema.cue), which
// supplies defaults and rejects unknown keys or out-of-range values.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// MemoryDatabase selects an in-memory store that starts empty on every run.
const MemoryDatabase = ":memory:"

// Defaults mirrored from schema.cue.
const (
	DefaultDatabaseFile = "hostcat.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"console", "json"}
)

// Config is the hostcat runtime configuration.
type Config struct {
	AclDatabaseFile string `json:"aclDatabaseFile" yaml:"aclDatabaseFile"`
	LogLevel        string `json:"logLevel" yaml:"logLevel"`
	LogFormat       string `json:"logFormat" yaml:"logFormat"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		AclDatabaseFile: DefaultDatabaseFile,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}
}

// InMemory reports whether the config selects a throwaway in-memory store.
func (c Config) InMemory() bool {
	return c.AclDatabaseFile == MemoryDatabase
}

// Validate checks a Config assembled outside Load (e.g. after flag overrides).
func (c Config) Validate() error {
	if c.AclDatabaseFile == "" {
		return fmt.Errorf("aclDatabaseFile must not be empty")
	}
	if !slices.Contains(validLevels, c.LogLevel) {
		return fmt.Errorf("invalid logLevel %q: must be one of %v", c.LogLevel, validLevels)
	}
	if !slices.Contains(validFormats, c.LogFormat) {
		return fmt.Errorf("invalid logFormat %q: must be one of %v", c.LogFormat, validFormats)
	}
	return nil
}

// Load reads a .yaml, .yml or .cue config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()

	var value cue.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		raw := map[string]any{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		value = ctx.Encode(raw)
	case ".cue":
		value = ctx.CompileBytes(data, cue.Filename(path))
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := value.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return decode(ctx, value)
}

// decode unifies v with #Config and decodes the concrete result.
func decode(ctx *cue.Context, v cue.Value) (Config, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
