package cmd

import (
	"fmt"

	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// newResolver builds the settings resolver of the configured backend,
// reading index configurations from disk.
func newResolver(cfg *config.Config) (*settings.Resolver, error) {
	eng, err := engine.New(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", cfg.Backend, err)
	}
	return &settings.Resolver{
		Config: cfg,
		Engine: eng,
		Reader: idxconf.FileReader{},
	}, nil
}

// loadResolver loads the configuration file at configPath and builds its
// resolver.
func loadResolver(configPath string) (*config.Config, *settings.Resolver, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, resolver, nil
}
