package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadConfig reads the optional YAML config. A missing path yields
// the zero config; a named-but-unreadable file is an error.
func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
