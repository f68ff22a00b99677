package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/version"
)

// VersionCommand creates the version command
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			fmt.Println(version.BuildVersion())
			fmt.Printf("backends: %s\n", strings.Join(engine.Backends(), ", "))
			return nil
		},
	}
}
