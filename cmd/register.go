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

type registerCmd struct {
	owner string
	reg   aurum.Registration
	json  bool
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "register a new gold asset" }
func (*registerCmd) Usage() string {
	return `aurum register -weight <grams> -cert-date <YYYY-MM-DD> [-owner <address>] [-purity 24K] [-description ...] [-certification ...] [-mine ...] [-parent <id>]

  Registers an asset on the ledger and records it in the durable store.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "owner address, defaults to the session address")
	f.StringVar(&c.reg.Weight, "weight", "", "weight in grams")
	f.StringVar(&c.reg.Purity, "purity", "24K", "purity")
	f.StringVar(&c.reg.Description, "description", "", "description")
	f.StringVar(&c.reg.CertificationDetails, "certification", "", "certification details")
	f.StringVar(&c.reg.CertificationDate, "cert-date", "", "certification date")
	f.StringVar(&c.reg.MineLocation, "mine", "", "mine location")
	f.StringVar(&c.reg.ParentGoldID, "parent", "", "identifier of the asset this one was made from")
	f.BoolVar(&c.json, "json", false, "print the registered asset as JSON")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	r, err := app.Registrar.Register(ctx, owner, ledgerIdentity, c.reg)
	switch {
	case errors.Is(err, aurum.ErrInvalidAsset):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	case errors.Is(err, aurum.ErrStoreUnavailable) && r.UniqueIdentifier != "":
		fmt.Fprintf(os.Stderr, "Warning: %s is registered on the ledger but not in the store: %v\n", r.UniqueIdentifier, err)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error registering asset: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		return printJSON(r)
	}
	printMarkdown(renderer.AssetMarkdown(r))
	return subcommands.ExitSuccess
}
