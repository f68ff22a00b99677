package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the configured indexes",
		ArgsUsage: "[query words...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query, joined after any positional words",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Restrict results to a directory, as listed by the dirs command",
				Value: catalog.Unrestricted,
			},
			&cli.StringFlag{
				Name:  "after",
				Usage: "Only documents modified on or after this date (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "before",
				Usage: "Only documents modified on or before this date (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort field: relevancyrating, mtime, url, filename, fbytes or author",
				Value: query.DefaultSort,
			},
			&cli.BoolFlag{
				Name:  "ascending",
				Usage: "Sort in ascending order",
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page, 0 for every result",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "perpage",
				Usage: "Results per page (overrides the configured default)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, json or csv",
				Value: "text",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, resolver, err := loadResolver(c.String("config"))
			if err != nil {
				return err
			}
			words := append(c.Args().Slice(), c.String("query"))
			v := map[string][]string{
				"query":  {strings.TrimSpace(strings.Join(words, " "))},
				"dir":    {c.String("dir")},
				"after":  {c.String("after")},
				"before": {c.String("before")},
				"sort":   {c.String("sort")},
				"page":   {strconv.Itoa(c.Int("page"))},
			}
			if c.Bool("ascending") {
				v["ascending"] = []string{"1"}
			}
			req := query.ParseRequest(v)

			overrides := settings.MapOverrides{}
			if n := c.Int("perpage"); n > 0 {
				overrides["perpage"] = strconv.Itoa(n)
			}
			snap := resolver.Resolve(overrides)
			service := search.NewService(resolver.Engine, resolver.Config.SearchTimeout.Duration)
			return runSearch(ctx, os.Stdout, service, snap, req, c.String("format"))
		},
	}
}

// runSearch runs req and writes the results to w in format.
func runSearch(ctx context.Context, w io.Writer, service *search.Service, snap *settings.Snapshot, req query.Request, format string) error {
	switch format {
	case "json":
		req = render.ExportRequest(req, "json")
		return render.JSON(w, req, service.Search(ctx, snap, req))
	case "csv":
		req = render.ExportRequest(req, "csv")
		return render.CSV(w, snap.Options.CSVFields, service.Search(ctx, snap, req))
	case "text":
		req.Highlight = 0
		page := service.Search(ctx, snap, req)
		_, err := io.WriteString(w, formatPage(query.Compile(req), page))
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
