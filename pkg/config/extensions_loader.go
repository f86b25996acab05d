package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/covenant-labs/covenant/pkg/deps"
)

// ExtensionEntry is one whitelisted package in the extensions file.
type ExtensionEntry struct {
	Name     string   `yaml:"name" json:"name"`
	Addr     string   `yaml:"addr" json:"addr"`
	Versions []string `yaml:"versions" json:"versions"`
}

// ExtensionsFile is the on-disk shape of the trusted-extensions whitelist.
type ExtensionsFile struct {
	Extensions []ExtensionEntry `yaml:"extensions" json:"extensions"`
}

// LoadExtensions reads a YAML whitelist and builds the registry.
func LoadExtensions(path string) (*deps.Extensions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions file: %w", err)
	}
	return ParseExtensions(data)
}

// ParseExtensions builds the registry from YAML bytes.
func ParseExtensions(data []byte) (*deps.Extensions, error) {
	var file ExtensionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse extensions file: %w", err)
	}
	registry := deps.NewExtensions()
	for _, entry := range file.Extensions {
		if len(entry.Versions) == 0 {
			return nil, fmt.Errorf("extension %s lists no versions", entry.Name)
		}
		for _, raw := range entry.Versions {
			version, err := semver.NewVersion(raw)
			if err != nil {
				return nil, fmt.Errorf("extension %s: invalid version %q: %w", entry.Name, raw, err)
			}
			if err := registry.Add(entry.Name, entry.Addr, version); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}
