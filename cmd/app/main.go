package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/stenmark/docbridge/internal"
	"github.com/stenmark/docbridge/internal/engine"
	pkgconfig "github.com/stenmark/docbridge/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func syncOptions(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	opts := []internal.Option{internal.WithConfig(cfg)}
	if v := cmd.String("mode"); v != "" {
		opts = append(opts, internal.WithMode(v))
	}
	if v := cmd.String("conflicts"); v != "" {
		opts = append(opts, internal.WithStrategy(v))
	}
	if v := cmd.String("space"); v != "" {
		opts = append(opts, internal.WithSpaceKey(v))
	}
	if n := cmd.Int("parallel"); n > 0 {
		opts = append(opts, internal.WithParallelism(int(n)))
	}
	opts = append(opts, internal.WithDryRun(cmd.Bool("dry-run")))
	return opts
}

func printReport(report *engine.Report) {
	for _, o := range report.Outcomes {
		switch o.Status {
		case engine.StatusSkipped:
			fmt.Printf("  %-10s %s (%s)\n", o.Status, o.Path, o.Reason)
		case engine.StatusFailed:
			fmt.Printf("  %-10s %s (%s: %s)\n", o.Status, o.Path, o.ErrorKind, o.Message)
		case engine.StatusConflict:
			fmt.Printf("  %-10s %s (remote version %d)\n", o.Status, o.Path, o.RemoteVersion)
		default:
			fmt.Printf("  %-10s %s -> page %s\n", o.Status, o.Path, o.PageID)
		}
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("created %d, updated %d, skipped %d, conflicts %d, failed %d\n",
		report.Count(engine.StatusCreated), report.Count(engine.StatusUpdated),
		report.Count(engine.StatusSkipped), report.Count(engine.StatusConflict),
		report.Count(engine.StatusFailed))
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report, err := internal.RunSync(ctx, syncOptions(cmd, cfg)...)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%d file(s) failed or left in conflict",
			report.Count(engine.StatusFailed)+report.Count(engine.StatusConflict))
	}
	return nil
}

func runPull(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pageID := cmd.Args().Get(0)
	outputPath := cmd.Args().Get(1)
	if pageID == "" || outputPath == "" {
		return fmt.Errorf("usage: docbridge pull <page-id> <output-path>")
	}

	outcome, err := internal.RunPull(ctx, pageID, outputPath, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	fmt.Printf("%s %s -> page %s\n", outcome.Status, outcome.Path, outcome.PageID)
	return nil
}

func runStatus(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	info, err := internal.Status(internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(info, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runHistory(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := internal.History(int(cmd.Int("limit")), internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunServe(ctx, internal.WithConfig(cfg))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "docbridge",
		Usage: "Keep a Markdown docs tree and a remote wiki space in sync",
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
				Name:   "sync",
				Usage:  "Run a synchronization over the docs tree",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Usage: "Sync mode: push, pull, or auto"},
					&cli.StringFlag{Name: "conflicts", Usage: "Conflict strategy: prompt, prefer_local, prefer_remote, or abort"},
					&cli.StringFlag{Name: "space", Usage: "Target wiki space key"},
					&cli.IntFlag{Name: "parallel", Usage: "Files processed at once"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Preview actions without touching the wiki or the mapping store"},
				},
			},
			{
				Name:      "pull",
				Usage:     "Fetch one wiki page into the docs tree as Markdown",
				ArgsUsage: "<page-id> <output-path>",
				Action:    runPull,
			},
			{
				Name:   "status",
				Usage:  "Show the mapping registry and the last run",
				Action: runStatus,
			},
			{
				Name:   "history",
				Usage:  "Show recent sync runs",
				Action: runHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum runs to show"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live progress events and a file watcher",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Serve docbridge tools over MCP stdio transport",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
