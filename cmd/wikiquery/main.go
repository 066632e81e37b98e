// Command wikiquery resolves one page from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/page"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "wikiquery",
		Usage: "resolve a MediaWiki page into its canonical title, link and summary",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wiki",
				Aliases: []string{"w"},
				Usage:   "wiki base URL or api.php URL",
				EnvVars: []string{"WIKI_RESOLVER_DEFAULT_WIKI"},
			},
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "page title, may carry ?args and #section",
			},
			&cli.IntFlag{
				Name:  "id",
				Usage: "page ID (used when --title is not given)",
			},
			&cli.BoolFlag{
				Name:  "random",
				Usage: "resolve a random article",
			},
			&cli.BoolFlag{
				Name:  "site",
				Usage: "print the wiki's metadata instead of a page",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "yaml",
				Usage:   "output format: yaml or json",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: time.Minute,
				Usage: "overall deadline",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "log errors only",
			},
		},
		Action: func(c *cli.Context) error {
			return queryAction(c, out)
		},
	}
}

func queryAction(c *cli.Context, out io.Writer) error {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	format := c.String("format")
	if format != "yaml" && format != "json" {
		return cli.Exit(fmt.Sprintf("unknown format %q (want yaml or json)", format), 2)
	}

	config, err := page.LoadConfig()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	engine, err := page.Open(*config, logger)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	wiki := c.String("wiki")
	var result any
	switch {
	case c.Bool("site"):
		result, err = engine.SiteInfoMCP(ctx, page.SiteInfoArgs{Wiki: wiki})
	case c.Bool("random"):
		result, err = engine.RandomPageMCP(ctx, page.RandomPageArgs{Wiki: wiki})
	default:
		args := page.ResolvePageArgs{Wiki: wiki}
		switch {
		case c.IsSet("title"):
			title := c.String("title")
			args.Title = &title
		case c.IsSet("id"):
			id := c.Int("id")
			args.PageID = &id
		}
		result, err = engine.ResolvePageMCP(ctx, args)
	}
	if err != nil {
		return err
	}
	return write(out, format, result)
}

// write prints v in the chosen format. YAML goes through JSON first so the
// field names match the MCP output.
func write(out io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
