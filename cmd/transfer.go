package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/date"
	"github.com/etnz/aurum/renderer"
	"github.com/google/subcommands"
)

type transferCmd struct {
	to   string
	date string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "transfer the ownership of an asset" }
func (*transferCmd) Usage() string {
	return `aurum transfer -to <address> [-date <YYYY-MM-DD>] <id>

  Appends a new owner to the provenance chain of an asset.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.to, "to", "", "address of the new owner")
	f.StringVar(&c.date, "date", "", "transfer date, defaults to today")
}

func (c *transferCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "transfer requires exactly one asset id")
		return subcommands.ExitUsageError
	}
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	on := c.date
	if on == "" {
		on = date.Of(app.Clock()).String()
	}
	r, err := app.Tracker.TransferOwnership(ctx, f.Arg(0), c.to, on)
	switch {
	case errors.Is(err, aurum.ErrInvalidTransfer):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error transferring %q: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.AssetMarkdown(r))
	return subcommands.ExitSuccess
}
