package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/renderer"
	"github.com/google/subcommands"
)

type trackCmd struct {
	json bool
}

func (*trackCmd) Name() string     { return "track" }
func (*trackCmd) Synopsis() string { return "display an asset and its ownership history" }
func (*trackCmd) Usage() string {
	return `aurum track [-json] <id>

  Looks an asset up in the ledger, then in the durable store, and displays
  it with its provenance chain.
`
}

func (c *trackCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the asset as JSON")
}

func (c *trackCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "track requires exactly one asset id")
		return subcommands.ExitUsageError
	}
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	r, status := find(ctx, app, f.Arg(0))
	if status != subcommands.ExitSuccess {
		return status
	}
	if c.json {
		return printJSON(r)
	}
	printMarkdown(renderer.AssetMarkdown(r))
	return subcommands.ExitSuccess
}

// find resolves an asset for the ledger account of app.
func find(ctx context.Context, app *App, id string) (aurum.AssetRecord, subcommands.ExitStatus) {
	ledgerIdentity, err := app.LedgerIdentity(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving the ledger account: %v\n", err)
		return aurum.AssetRecord{}, subcommands.ExitFailure
	}
	r, err := app.Resolver.Find(ctx, ledgerIdentity, id)
	if errors.Is(err, aurum.ErrAssetNotFound) {
		fmt.Fprintf(os.Stderr, "Asset %q not found\n", id)
		return r, subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error looking up asset %q: %v\n", id, err)
		return r, subcommands.ExitFailure
	}
	return r, subcommands.ExitSuccess
}
