// Package idxconf reads the per-index configuration file (index.toml) that
// lives in every index configuration root.
//
//	topdirs = ["~/Documents", "~/src"]
//	stemming_languages = ["english"]
//	skipped_names = ["*.o", ".git", "node_modules"]
package idxconf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/fedsearch/pkg/config"
)

// FileName is the configuration file name inside a config root.
const FileName = "index.toml"

// IndexConfig is the configuration of one index.
type IndexConfig struct {
	TopDirs           []string `toml:"topdirs"`
	StemmingLanguages []string `toml:"stemming_languages"`
	SkippedNames      []string `toml:"skipped_names"`
}

// Reader loads index configurations. The router only depends on this
// interface so tests can supply catalogs without touching disk.
type Reader interface {
	Load(confRoot string) (*IndexConfig, error)
}

// FileReader reads index.toml from disk.
type FileReader struct{}

// Load reads and parses <confRoot>/index.toml. Top directories are returned
// with ~ expanded and cleaned.
func (FileReader) Load(confRoot string) (*IndexConfig, error) {
	path := filepath.Join(confRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg IndexConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	dirs := make([]string, 0, len(cfg.TopDirs))
	for _, d := range cfg.TopDirs {
		if d == "" {
			continue
		}
		dirs = append(dirs, filepath.Clean(config.ExpandHome(d)))
	}
	cfg.TopDirs = dirs

	return &cfg, nil
}

// Save writes cfg to <confRoot>/index.toml, creating confRoot if needed.
func Save(confRoot string, cfg *IndexConfig) error {
	if err := os.MkdirAll(confRoot, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", confRoot, err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling index config: %w", err)
	}
	return os.WriteFile(filepath.Join(confRoot, FileName), data, 0644)
}

// MapReader serves configurations from memory, keyed by config root.
type MapReader map[string]*IndexConfig

func (m MapReader) Load(confRoot string) (*IndexConfig, error) {
	cfg, ok := m[confRoot]
	if !ok {
		return nil, fmt.Errorf("no index configuration for %s", confRoot)
	}
	return cfg, nil
}
