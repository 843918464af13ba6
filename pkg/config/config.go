package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the application, including the
// throttling parameters the simulator runs under.
type Config struct {
	Capture   string `koanf:"capture"`
	WebMode   bool   `koanf:"web"`
	Port      int    `koanf:"port"`
	Watch     bool   `koanf:"watch"`
	Calibrate bool   `koanf:"calibrate"`
	JSONLogs  bool   `koanf:"json-logs"`
	Verbosity string `koanf:"verbosity"`

	// Throttling knobs; defaults approximate a throttled mobile
	// connection.
	RTTMs          float64 `koanf:"rtt"`
	ThroughputKbps float64 `koanf:"throughput"`
	CPUSlowdown    float64 `koanf:"cpu-slowdown"`
	MaxConcurrent  int     `koanf:"max-concurrent"`
}

// ThroughputBytesPerSecond converts the configured Kbps figure to the
// bytes/second the simulator consumes.
func (c *Config) ThroughputBytesPerSecond() float64 {
	return c.ThroughputKbps * 1024 / 8
}

// Load loads configuration from defaults, config file, environment
// variables, and flags. Priority: Flags > Env > Config File > Defaults.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"capture":        "",
		"web":            false,
		"port":           8080,
		"watch":          false,
		"calibrate":      true,
		"json-logs":      false,
		"verbosity":      "",
		"rtt":            150.0,
		"throughput":     1600.0,
		"cpu-slowdown":   4.0,
		"max-concurrent": 10,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - lantern.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("lantern.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: LANTERN_ (e.g., LANTERN_PORT=9090)
	if err := k.Load(env.Provider("LANTERN_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "LANTERN_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
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

// Helper to use map as a provider
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
