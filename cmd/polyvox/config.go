package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk CLI configuration, read from ~/.polyvox.yaml
// unless --config points elsewhere. The POLYVOX_API_KEY environment variable
// overrides the file.
type fileConfig struct {
	APIKey        string `yaml:"api_key"`
	APIBaseURL    string `yaml:"api_base_url"`
	TrustedDomain string `yaml:"trusted_domain"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".polyvox.yaml")
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file is fine; the API key may come from the environment.
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if key := os.Getenv("POLYVOX_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	return cfg, nil
}
