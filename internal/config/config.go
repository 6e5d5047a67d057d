// Package config loads pkginstall's configuration from layered sources:
// built-in defaults, an optional TOML file, environment variables, and
// command-line flags, in increasing priority order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for an install run.
type Config struct {
	Store              string `koanf:"store"`
	WorkersLimit       int    `koanf:"workers"`
	IgnoreBinConflicts bool   `koanf:"ignore_bin_conflicts"`
	FailOnMissingPeer  bool   `koanf:"fail_on_missing_peer"`
	Status             bool   `koanf:"status"`
	Port               int    `koanf:"port"`
	Verbosity          string `koanf:"verbosity"`
	VerboseCnt         int    `koanf:"verbose"`
}

// Load loads configuration from defaults, config file, environment
// variables, and flags. Priority: Flags > Env > Config File > Defaults.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"store":                 "",
		"workers":               defaultWorkersLimit(),
		"ignore_bin_conflicts":  false,
		"fail_on_missing_peer":  true,
		"status":                false,
		"port":                  8080,
		"verbosity":             "",
		"verbose":               0,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Config file is optional; a missing file is not an error.
	_ = k.Load(file.Provider("pkginstall.toml"), toml.Parser())

	// PKGINSTALL_STORE, PKGINSTALL_WORKERS, etc.
	if err := k.Load(env.Provider("PKGINSTALL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PKGINSTALL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// defaultWorkersLimit honors the spec's WORKERS_LIMIT environment
// variable before falling back to the number of CPUs.
func defaultWorkersLimit() int {
	if s := os.Getenv("WORKERS_LIMIT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
