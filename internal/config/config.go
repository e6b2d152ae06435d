// Package config loads a node's optional TOML configuration file. Every
// field it sets can also be set by a command-line flag; flags always win,
// so a config file is a convenience for a fixed cluster layout rather than
// a required artifact.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// PeerConfig is one other node in the cluster, as written in the
// [[peers]] array of tables.
type PeerConfig struct {
	ID      string `toml:"id"`
	Address string `toml:"address"`
}

// Config is the full shape of a node's TOML config file.
type Config struct {
	NodeID            string       `toml:"node_id"`
	ListenAddr        string       `toml:"listen_addr"`
	AdminAddr         string       `toml:"admin_addr"`
	DataDir           string       `toml:"data_dir"`
	StartPrimary      bool         `toml:"start_primary"`
	CheckpointInterval string      `toml:"checkpoint_interval"` // parsed with time.ParseDuration, e.g. "60s"
	Peers             []PeerConfig `toml:"peers"`
}

// Load parses the TOML file at path. A missing or malformed file is the
// caller's problem to report — this returns the error untouched rather
// than silently falling back to defaults, since an operator-facing config
// file with a typo should be loud, unlike the best-effort checkpoint
// deserialize path in the store.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}
