// Package egpconfig loads EGP core configuration from a YAML file with
// environment-variable overrides, following the teacher's two-step
// LoadFromEnv/Validate pattern (pkg/config/config.go in the reference
// NornicDB codebase).
package egpconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CacheConfig bounds one of the LRU caches described in §4.1/§4.3 of the spec.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// Config holds all EGP core configuration.
//
// Example:
//
//	cfg := egpconfig.Default()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
type Config struct {
	// DevProfile gates destructive TypeRegistry operations (§4.3). Must be
	// true for Registry.Reset to succeed.
	DevProfile bool `yaml:"dev_profile"`

	// DataDir is the directory containing the signed types bundle and any
	// codon bundles (§6.5).
	DataDir string `yaml:"data_dir"`

	// TypesBundleFile is the file name, relative to DataDir, of the signed
	// JSON types bundle.
	TypesBundleFile string `yaml:"types_bundle_file"`

	// DefaultAlgorithm is the signing algorithm used when none is specified
	// ("Ed25519" or "RSA").
	DefaultAlgorithm string `yaml:"default_algorithm"`

	// LogLevel is one of logrus's level names, or "verify"/"consistency"
	// (see egplog).
	LogLevel string `yaml:"log_level"`

	// TypeCache bounds Registry.get's LRU (§4.3).
	TypeCache CacheConfig `yaml:"type_cache"`
	// AncestorCache bounds Registry.Ancestors' LRU (§4.3).
	AncestorCache CacheConfig `yaml:"ancestor_cache"`
	// DescendantCache bounds Registry.Descendants' LRU (§4.3).
	DescendantCache CacheConfig `yaml:"descendant_cache"`
	// DedupCache bounds each ObjectDeduplicator instance's LRU (§4.1) unless
	// constructed with an explicit size.
	DedupCache CacheConfig `yaml:"dedup_cache"`
}

// Default returns EGP core's baked-in defaults.
func Default() *Config {
	return &Config{
		DevProfile:       false,
		DataDir:          "./data",
		TypesBundleFile:  "types_def.json",
		DefaultAlgorithm: "Ed25519",
		LogLevel:         "info",
		TypeCache:        CacheConfig{Size: 1024},
		AncestorCache:    CacheConfig{Size: 128},
		DescendantCache:  CacheConfig{Size: 128},
		DedupCache:       CacheConfig{Size: 1 << 16},
	}
}

// Load reads a YAML config file, starting from Default() so missing fields
// keep their defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return LoadFromEnv(cfg), nil
			}
			return nil, fmt.Errorf("egpconfig: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("egpconfig: parsing %s: %w", path, err)
		}
	}
	return LoadFromEnv(cfg), nil
}

// LoadFromEnv applies EGP_-prefixed environment variable overrides on top of
// cfg, mirroring the teacher's NEO4J_/NORNICDB_ environment convention.
func LoadFromEnv(cfg *Config) *Config {
	if v, ok := os.LookupEnv("EGP_DEV_PROFILE"); ok {
		cfg.DevProfile = truthy(v)
	}
	if v, ok := os.LookupEnv("EGP_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("EGP_TYPES_BUNDLE_FILE"); ok {
		cfg.TypesBundleFile = v
	}
	if v, ok := os.LookupEnv("EGP_DEFAULT_ALGORITHM"); ok {
		cfg.DefaultAlgorithm = v
	}
	if v, ok := os.LookupEnv("EGP_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("EGP_TYPE_CACHE_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TypeCache.Size = n
		}
	}
	return cfg
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("egpconfig: data_dir must not be empty")
	}
	if c.TypesBundleFile == "" {
		return fmt.Errorf("egpconfig: types_bundle_file must not be empty")
	}
	switch c.DefaultAlgorithm {
	case "Ed25519", "RSA":
	default:
		return fmt.Errorf("egpconfig: default_algorithm must be Ed25519 or RSA, got %q", c.DefaultAlgorithm)
	}
	for name, cc := range map[string]CacheConfig{
		"type_cache":       c.TypeCache,
		"ancestor_cache":   c.AncestorCache,
		"descendant_cache": c.DescendantCache,
		"dedup_cache":      c.DedupCache,
	} {
		if cc.Size < 0 {
			return fmt.Errorf("egpconfig: %s.size must be >= 0, got %d", name, cc.Size)
		}
	}
	return nil
}
