// Package hostconfig reads and writes the CLI host's own preferences,
// kept separate from the vault's settings so that wiping or re-initializing
// a vault never touches them.
package hostconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the host config file, read from the vault
// directory. The name is fixed at config.json by convention; the content
// is YAML regardless (see Config below) — this is deliberate, not a
// mismatch to fix.
const FileName = "config.json"

// Config holds per-host preferences, YAML-encoded despite FileName's
// extension — kept distinct from the vault root document's JSON
// serialization so the two formats are never confused at a glance.
type Config struct {
	Theme        string `yaml:"theme"`
	LastAccessAt int64  `yaml:"last_access_at"`
	VaultPath    string `yaml:"vault_path,omitempty"`
}

// Load reads the host config from vaultHome. A missing file returns a
// zero-value Config and no error — a host with no prior preferences is not
// an error condition.
func Load(vaultHome string) (*Config, error) {
	path := filepath.Join(vaultHome, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("hostconfig: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hostconfig: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to vaultHome with 0600 permissions.
func Save(vaultHome string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("hostconfig: failed to marshal config: %w", err)
	}

	path := filepath.Join(vaultHome, FileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("hostconfig: failed to write %s: %w", path, err)
	}
	return nil
}

// Touch updates LastAccessAt to nowMillis and persists the change.
func Touch(vaultHome string, nowMillis int64) error {
	cfg, err := Load(vaultHome)
	if err != nil {
		return err
	}
	cfg.LastAccessAt = nowMillis
	return Save(vaultHome, cfg)
}
