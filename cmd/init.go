package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration and the primary index configuration",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "topdir",
				Usage: "Directory to index (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "skip",
				Usage: "File or directory name glob to skip while indexing (repeatable)",
				Value: []string{".git", "node_modules", "*.tmp", "*~"},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(c.String("config"), c.StringSlice("topdir"), c.StringSlice("skip"))
		},
	}
}

// initConfig writes the configuration file and, unless one exists, the
// index configuration of the primary index.
func initConfig(configPath string, topDirs, skip []string) error {
	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return err
	}
	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration initialized at %s\n", configPath)

	idxPath := filepath.Join(cfg.ConfDir, idxconf.FileName)
	if _, err := os.Stat(idxPath); err == nil {
		fmt.Printf("Keeping existing index configuration %s\n", idxPath)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if len(topDirs) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting user home directory: %w", err)
		}
		topDirs = []string{filepath.Join(home, "Documents")}
	}
	icfg := &idxconf.IndexConfig{
		TopDirs:           topDirs,
		StemmingLanguages: []string{"english"},
		SkippedNames:      skip,
	}
	if err := idxconf.Save(cfg.ConfDir, icfg); err != nil {
		return fmt.Errorf("saving index configuration: %w", err)
	}
	fmt.Printf("Index configuration initialized at %s\n", idxPath)
	return nil
}
