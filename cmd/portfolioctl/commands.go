package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"portfolio-dashboard/internal/app"
	"portfolio-dashboard/internal/config"
	"portfolio-dashboard/internal/logger"
	"portfolio-dashboard/internal/portfolio"
)

var commands = []subcommands.Command{
	&snapshotCmd{},
	&holdingsCmd{},
	&quoteCmd{},
	&insightCmd{},
}

// open loads the config and builds the app. Logs go to stderr so stdout
// stays parseable.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	logger.InitWriter(os.Stderr, cfg.Log.Level)
	return app.Build(ctx, cfg)
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

type snapshotCmd struct {
	format string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "value the portfolio against current quotes" }
func (*snapshotCmd) Usage() string {
	return `portfolioctl snapshot [-format markdown|json]

  Prints the valued portfolio grouped by sector.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "markdown", "output format (markdown, json)")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.format != "markdown" && c.format != "json" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	snap, err := a.Portfolio.Snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	if c.format == "json" {
		if err := printJSON(os.Stdout, snap); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(portfolio.Markdown(snap, a.Config.Market.Currency))
	return subcommands.ExitSuccess
}

type holdingsCmd struct{}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "list stored holdings" }
func (*holdingsCmd) Usage() string {
	return `portfolioctl holdings

  Lists holdings in insertion order as JSON.
`
}
func (*holdingsCmd) SetFlags(*flag.FlagSet) {}

func (*holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	holdings, err := a.Portfolio.Holdings(ctx)
	if err != nil {
		return fail(err)
	}
	if err := printJSON(os.Stdout, holdings); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch quotes through the provider chain" }
func (*quoteCmd) Usage() string {
	return `portfolioctl quote [SYMBOL...]

  Resolves the given symbols, or every held symbol, and prints the result
  with the source that served it.
`
}
func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var symbols []string
	for _, s := range f.Args() {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	res, err := a.Portfolio.Quotes(ctx, symbols)
	if err != nil {
		return fail(err)
	}
	if err := printJSON(os.Stdout, res); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type insightCmd struct{}

func (*insightCmd) Name() string     { return "insight" }
func (*insightCmd) Synopsis() string { return "comment on the current snapshot" }
func (*insightCmd) Usage() string {
	return `portfolioctl insight

  Prints a short commentary, from the configured model or the built-in rules.
`
}
func (*insightCmd) SetFlags(*flag.FlagSet) {}

func (*insightCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	snap, err := a.Portfolio.Snapshot(ctx)
	if err != nil {
		return fail(err)
	}
	out, err := a.Insight.Evaluate(ctx, snap, a.Config.Market.Currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "model unavailable, using rules: %v\n", err)
	}
	if err := printJSON(os.Stdout, out); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}
