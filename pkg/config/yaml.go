package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileOverlay is the optional subset of Config that may be supplied via a
// --config YAML file, for values operators prefer not to place in the
// process environment. Any field left unset in the file keeps the value
// Load() already populated from the environment.
type FileOverlay struct {
	ArweaveGatewayURL string `yaml:"arweave_gateway_url"`
	BundlerURL        string `yaml:"bundler_url"`
	ContractURL       string `yaml:"contract_url"`
	DatabaseURL       string `yaml:"database_url"`
	KeyPath           string `yaml:"key_path"`
	ValidatorID       string `yaml:"validator_id"`
}

// ApplyFile reads a YAML file at path and overlays any non-empty fields
// onto cfg. It is a no-op if path is empty.
func ApplyFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var overlay FileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if overlay.ArweaveGatewayURL != "" {
		cfg.ArweaveGatewayURL = overlay.ArweaveGatewayURL
	}
	if overlay.BundlerURL != "" {
		cfg.BundlerURL = overlay.BundlerURL
	}
	if overlay.ContractURL != "" {
		cfg.ContractURL = overlay.ContractURL
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.KeyPath != "" {
		cfg.KeyPath = overlay.KeyPath
	}
	if overlay.ValidatorID != "" {
		cfg.ValidatorID = overlay.ValidatorID
	}

	return nil
}
