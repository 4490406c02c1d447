package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/hxa/internal/hxa"
)

// Config is the file-level configuration shared by hxactl and hxad.
type Config struct {
	Limits LimitsConfig `toml:"limits"`
	Server ServerConfig `toml:"server"`
}

type LimitsConfig struct {
	MaxFileBytes   int64 `toml:"max_file_bytes"`
	MaxMetaDepth   int   `toml:"max_meta_depth"`
	MaxMetaEntries int   `toml:"max_meta_entries"`
}

type ServerConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	def := hxa.DefaultLimits()
	return Config{
		Limits: LimitsConfig{
			MaxFileBytes:   def.MaxFileBytes,
			MaxMetaDepth:   def.MaxMetaDepth,
			MaxMetaEntries: def.MaxMetaEntries,
		},
		Server: ServerConfig{
			Name: "hxad",
			Addr: ":9300",
		},
	}
}

// Load reads a TOML file over Default and validates the result. Unknown keys
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

func Validate(cfg Config) error {
	if cfg.Limits.MaxFileBytes <= 0 {
		return fmt.Errorf("limits.max_file_bytes must be positive")
	}
	if cfg.Limits.MaxMetaDepth <= 0 {
		return fmt.Errorf("limits.max_meta_depth must be positive")
	}
	if cfg.Limits.MaxMetaEntries <= 0 {
		return fmt.Errorf("limits.max_meta_entries must be positive")
	}
	if strings.TrimSpace(cfg.Server.Name) == "" {
		return fmt.Errorf("server.name is required")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// CodecLimits converts the limits section for the codec.
func (c Config) CodecLimits() hxa.Limits {
	return hxa.Limits{
		MaxFileBytes:   c.Limits.MaxFileBytes,
		MaxMetaDepth:   c.Limits.MaxMetaDepth,
		MaxMetaEntries: c.Limits.MaxMetaEntries,
	}
}
