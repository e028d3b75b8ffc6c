package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/renderer"
	"github.com/google/subcommands"
)

// holdingsCmd holds the flags for the 'holdings' subcommand.
type holdingsCmd struct {
	owner   string
	refresh bool
	watch   bool
	json    bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the reconciled gold holdings" }
func (*holdingsCmd) Usage() string {
	return `aurum holdings [-owner <address>] [-refresh] [-watch] [-json]

  Displays the gold assets of owner, merged from the ledger and the durable
  store. The owner defaults to the session address.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "store owner address, defaults to the session address")
	f.BoolVar(&c.refresh, "refresh", false, "bypass the cached holdings")
	f.BoolVar(&c.watch, "watch", false, "keep refreshing in the background until interrupted")
	f.BoolVar(&c.json, "json", false, "print the snapshot as JSON")
}

func (c *holdingsCmd) print(s aurum.Snapshot) subcommands.ExitStatus {
	if c.json {
		return printJSON(s)
	}
	printMarkdown(renderer.HoldingsMarkdown(s))
	return subcommands.ExitSuccess
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	ledgerIdentity, err := app.LedgerIdentity(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving the ledger account: %v\n", err)
		return subcommands.ExitFailure
	}
	owner, err := app.Owner(ctx, c.owner)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving the owner: %v\n", err)
		return subcommands.ExitFailure
	}

	snap, err := app.Holdings.Get(ctx, ledgerIdentity, owner, c.refresh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	if status := c.print(snap); status != subcommands.ExitSuccess || !c.watch {
		return status
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	interval := app.Settings.RefreshInterval
	if interval <= 0 {
		interval = aurum.DefaultRefreshInterval
	}
	app.Holdings.Watch(ctx, ledgerIdentity, owner, interval, func(s aurum.Snapshot) { c.print(s) })
	return subcommands.ExitSuccess
}
