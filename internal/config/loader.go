package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the release configuration file looked up at the
// repository root when no explicit path is given.
const DefaultFileName = "release.yaml"

// Overrides carries command-line values that take precedence over the file.
type Overrides struct {
	DryRun         bool
	DryRunSet      bool
	ConflictPolicy string
	ReleaseBranch  string
}

// Load reads a release configuration file, applies defaults and overrides,
// and validates the result.
func Load(path string, overrides Overrides, warn func(string)) (Config, error) {
	cfg, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg = ApplyDefaults(cfg, warn)
	cfg = applyOverrides(cfg, overrides)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readConfigFile parses one YAML configuration file with strict field
// checking so that typos surface as errors instead of silent defaults.
func readConfigFile(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path must not be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := ensureEOF(decoder, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ensureEOF rejects files that contain more than one YAML document.
func ensureEOF(decoder *yaml.Decoder, path string) error {
	var extra any
	err := decoder.Decode(&extra)
	if err == nil {
		return fmt.Errorf("parse config %s: unexpected second document", path)
	}
	if strings.Contains(err.Error(), "EOF") {
		return nil
	}
	return fmt.Errorf("parse config %s: %w", path, err)
}

// applyOverrides layers command-line values over the file configuration.
func applyOverrides(cfg Config, overrides Overrides) Config {
	if overrides.DryRunSet {
		cfg.DryRun = overrides.DryRun
	}
	if policy := strings.TrimSpace(overrides.ConflictPolicy); policy != "" {
		cfg.ConflictPolicy = policy
	}
	if branch := strings.TrimSpace(overrides.ReleaseBranch); branch != "" {
		cfg.ReleaseBranch = branch
	}
	return cfg
}
