package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/renderer"
	"github.com/google/subcommands"
)

type taxCmd struct {
	basis string
	json  bool
}

func (*taxCmd) Name() string     { return "tax" }
func (*taxCmd) Synopsis() string { return "compute the capital gains tax of an asset" }
func (*taxCmd) Usage() string {
	return `aurum tax [-basis last-transfer|original] [-json] <id>

  Computes the capital gains tax due if the asset was sold today.
  See 'aurum topic tax'.
`
}

func (c *taxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.basis, "basis", "", "start of the holding period: last-transfer or original")
	f.BoolVar(&c.json, "json", false, "print the report as JSON")
}

func (c *taxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "tax requires exactly one asset id")
		return subcommands.ExitUsageError
	}
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if c.basis != "" {
		basis, err := aurum.ParseBasis(c.basis)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		app.Tax.Basis = basis
	}

	r, status := find(ctx, app, f.Arg(0))
	if status != subcommands.ExitSuccess {
		return status
	}
	report, err := app.Tax.Compute(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing tax of %q: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	if c.json {
		return printJSON(report)
	}
	printMarkdown(renderer.TaxMarkdown(report))
	return subcommands.ExitSuccess
}
