package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the node service configuration. Values come from an
// optional YAML file, overridden by environment variables, overridden
// by flags.
type Config struct {
	// NodeID uniquely identifies this node in the cluster. Required.
	NodeID string `yaml:"node_id"`

	// Listen is the local listen address.
	Listen string `yaml:"listen"`

	// PublicAddr is the address the coordinator and peers reach this
	// node at.
	PublicAddr string `yaml:"public_addr"`

	// CoordinatorAddr is the coordinator base URL. Empty disables
	// registration, which is useful for single-node operation.
	CoordinatorAddr string `yaml:"coordinator_addr"`

	// Compression selects the archive compression mode: "none" or
	// "zstd".
	Compression string `yaml:"compression"`
}

// defaultConfig returns the built-in defaults.
func defaultConfig() Config {
	return Config{
		Listen:      ":8081",
		PublicAddr:  "http://127.0.0.1:8081",
		Compression: "zstd",
	}
}

// loadConfig reads the YAML file at path into cfg. A missing path is
// not an error; the defaults stand.
func loadConfig(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.NodeID = getenv("NODE_ID", cfg.NodeID)
	cfg.Listen = getenv("NODE_LISTEN", cfg.Listen)
	cfg.PublicAddr = getenv("NODE_ADDR", cfg.PublicAddr)
	cfg.CoordinatorAddr = getenv("COORDINATOR_ADDR", cfg.CoordinatorAddr)
	cfg.Compression = getenv("NODE_COMPRESSION", cfg.Compression)
}

// getenv returns the environment value for key, or def when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
