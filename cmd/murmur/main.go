package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/murmur/internal"
	pkgconfig "github.com/starford/murmur/pkg/config"
)

var version = "dev"

// loadApp reads the config named by --config and builds the application.
// A missing file at the default location falls back to defaults.
func loadApp(cmd *cli.Command, extra ...internal.Option) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := append([]internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, extra...)

	return internal.New(opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := app.Serve(ctx); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	// stdout carries the protocol.
	app, err := loadApp(cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return app.ServeMCP()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "Print machine-readable JSON",
	}

	cmd := &cli.Command{
		Name:    "murmur",
		Usage:   "Voice-recording transcripts and Markdown collections in one searchable knowledge base",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search notes across enabled collections",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag substring (repeatable)"},
					&cli.StringSliceFlag{Name: "collection", Usage: "Restrict to a collection (repeatable)"},
					&cli.BoolFlag{Name: "content", Usage: "Also match note bodies"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results (0 = all)"},
					jsonFlag,
				},
				Action: runSearch,
			},
			{
				Name:  "index",
				Usage: "Regenerate the topic index report in the primary collection",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "print", Usage: "Print the report instead of writing it"},
					jsonFlag,
				},
				Action: runIndex,
			},
			{
				Name:   "collections",
				Usage:  "List registered collections",
				Flags:  []cli.Flag{jsonFlag},
				Action: runCollections,
			},
			{
				Name:   "import",
				Usage:  "Import new recordings from the recording API",
				Flags:  []cli.Flag{jsonFlag},
				Action: runImport,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch collections",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
