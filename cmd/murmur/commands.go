package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/starford/murmur/internal"
	"github.com/starford/murmur/internal/models"
	"github.com/starford/murmur/internal/search"
)

// quietApp builds the application with logs on stderr at warning level so
// command output stays readable.
func quietApp(cmd *cli.Command) (*internal.App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return loadApp(cmd, internal.WithLogger(logger))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(warnings []models.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	app, err := quietApp(cmd)
	if err != nil {
		return err
	}
	limit := int(cmd.Int("limit"))
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	res, err := app.Service().Search(ctx, search.Query{
		Text:           strings.Join(cmd.Args().Slice(), " "),
		Tags:           cmd.StringSlice("tag"),
		Collections:    cmd.StringSlice("collection"),
		Limit:          limit,
		IncludeContent: cmd.Bool("content"),
	})
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(os.Stdout, res)
	}
	printWarnings(res.Warnings)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tPATH\tTITLE\tMODIFIED\tTAGS")
	for _, r := range res.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Collection, r.Path, r.Title, humanize.Time(r.Modified), strings.Join(r.Tags, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d result(s)\n", len(res.Results))
	return nil
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	app, err := quietApp(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("print") {
		if cmd.Bool("json") {
			idx, warnings, err := app.Service().Topics(ctx)
			if err != nil {
				return err
			}
			printWarnings(warnings)
			return printJSON(os.Stdout, idx)
		}
		report, warnings, err := app.Service().Report(ctx)
		if err != nil {
			return err
		}
		printWarnings(warnings)
		_, err = os.Stdout.Write(report)
		return err
	}

	res, err := app.Service().Rebuild(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(os.Stdout, res)
	}
	printWarnings(res.Warnings)
	state := "unchanged"
	if res.Written {
		state = "written"
	}
	fmt.Printf("%s: %s (%d topics)\n", res.Path, state, res.Topics)
	return nil
}

func runCollections(ctx context.Context, cmd *cli.Command) error {
	app, err := quietApp(cmd)
	if err != nil {
		return err
	}
	list := app.Service().Collections(ctx)
	if cmd.Bool("json") {
		return printJSON(os.Stdout, list)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tENABLED\tSTATUS\tROOT")
	for _, c := range list {
		status := "ok"
		if !c.Reachable {
			status = "unreachable"
		}
		name := c.Name
		if c.Icon != "" {
			name = c.Icon + " " + name
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", name, c.Kind, c.Enabled, status, c.Root)
	}
	return tw.Flush()
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	app, err := quietApp(cmd)
	if err != nil {
		return err
	}
	res, err := app.Service().Import(ctx)
	if cmd.Bool("json") && err == nil {
		return printJSON(os.Stdout, res)
	}
	if err != nil {
		if res.Written > 0 {
			fmt.Fprintf(os.Stderr, "imported %d recording(s) before failing\n", res.Written)
		}
		return err
	}
	for _, p := range res.Paths {
		fmt.Println(p)
	}
	fmt.Printf("fetched %s, written %s, skipped %s\n",
		humanize.Comma(int64(res.Fetched)), humanize.Comma(int64(res.Written)), humanize.Comma(int64(res.Skipped)))
	return nil
}
