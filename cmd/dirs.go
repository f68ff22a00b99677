package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// DirsCommand creates the dirs command
func DirsCommand() *cli.Command {
	return &cli.Command{
		Name:  "dirs",
		Usage: "List the indexed top directories and the search scopes below them",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Subdirectory levels listed as scopes (overrides the configured default)",
				Value: -1,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the catalog as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, resolver, err := loadResolver(c.String("config"))
			if err != nil {
				return err
			}
			overrides := settings.MapOverrides{}
			if d := c.Int("depth"); d >= 0 {
				overrides["dirdepth"] = strconv.Itoa(d)
			}
			snap := resolver.Resolve(overrides)
			tree := catalog.BrowseTree(snap.Dirs, snap.Options.DirDepth)

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"entries": snap.Dirs, "tree": tree})
			}
			fmt.Print(formatDirs(snap.Dirs, tree))
			return nil
		},
	}
}
