package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/vaultlinker/internal"
	"github.com/starford/vaultlinker/internal/batch"
	"github.com/starford/vaultlinker/internal/knowledge"
	pkgconfig "github.com/starford/vaultlinker/pkg/config"
)

var version = "dev"

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "vaultlinker",
		Usage:   "Suggest and insert wiki links across a Markdown vault, backed by knowledge sources and language models",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the event stream and the vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "lookup",
				Usage:     "Look up a term in the knowledge sources",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Value: knowledge.Auto, Usage: "Knowledge provider or auto"},
					&cli.IntFlag{Name: "max", Value: 5, Usage: "Maximum number of results"},
					&cli.StringFlag{Name: "lang", Value: "en", Usage: "Language code for Wikipedia"},
				},
				Action: lookup,
			},
			{
				Name:      "suggest",
				Usage:     "Print link suggestions for one note",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{backendFlag()},
				Action:    suggest,
			},
			{
				Name:      "link",
				Usage:     "Suggest and insert links in one note",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					backendFlag(),
					&cli.BoolFlag{Name: "dry-run", Usage: "Report changes without writing"},
				},
				Action: link,
			},
			{
				Name:      "batch",
				Usage:     "Suggest links for every note in a folder, and optionally insert them",
				ArgsUsage: "<folder>",
				Flags: []cli.Flag{
					backendFlag(),
					&cli.IntFlag{Name: "concurrency", Usage: "Documents processed at once (default from config)"},
					&cli.StringSliceFlag{Name: "include", Usage: "Glob of notes to include, relative to the folder"},
					&cli.StringSliceFlag{Name: "exclude", Usage: "Glob of notes to skip, relative to the folder"},
					&cli.BoolFlag{Name: "apply", Usage: "Insert the suggestions after suggesting"},
					&cli.BoolFlag{Name: "dry-run", Usage: "With --apply, report changes without writing"},
				},
				Action: runBatch,
			},
		},
	}
}

func backendFlag() cli.Flag {
	return &cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "Suggestion backend (default from config)"}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// open builds the service for one-shot commands. Logs go to stderr so
// stdout carries only the JSON result.
func open(cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func lookup(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Service.Lookup(ctx, query, cmd.String("provider"), knowledge.LookupOptions{
		MaxResults: int(cmd.Int("max")),
		Language:   cmd.String("lang"),
	})
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("lookup failed: %s", res.Error)
	}
	return nil
}

func suggest(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Service.SuggestLinks(ctx, path, cmd.String("backend"))
	if err != nil {
		return err
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("suggest failed: %s", res.Error)
	}
	return nil
}

func link(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Service.LinkDocument(ctx, path, cmd.String("backend"), cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.Suggestions.Success {
		return fmt.Errorf("link failed: %s", res.Suggestions.Error)
	}
	return nil
}

// batchOutput is what the batch command prints.
type batchOutput struct {
	Suggest batch.SuggestResult `json:"suggest"`
	Apply   *batch.ApplyResult  `json:"apply,omitempty"`
}

func runBatch(ctx context.Context, cmd *cli.Command) error {
	folder := cmd.Args().First()
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.Service.BatchOptions(folder, cmd.String("backend"))
	if n := cmd.Int("concurrency"); n > 0 {
		opts.Concurrency = int(n)
	}
	if inc := cmd.StringSlice("include"); len(inc) > 0 {
		opts.Include = inc
	}
	if exc := cmd.StringSlice("exclude"); len(exc) > 0 {
		opts.Exclude = exc
	}

	sr, err := a.Service.BatchSuggest(ctx, opts)
	if err != nil {
		return err
	}
	out := batchOutput{Suggest: sr}
	if cmd.Bool("apply") {
		dryRun := a.Service.Settings().BatchDryRun
		if cmd.IsSet("dry-run") {
			dryRun = cmd.Bool("dry-run")
		}
		ar := a.Service.BatchApply(ctx, sr, batch.ApplyOptions{
			DryRun: dryRun,
			Linker: a.Service.Settings().Linker,
		})
		out.Apply = &ar
	}
	return printJSON(cmd, out)
}
