package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/aurum/renderer"
	"github.com/google/subcommands"
)

type pricesCmd struct {
	json bool
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "display the monthly gold prices" }
func (*pricesCmd) Usage() string {
	return `aurum prices [-json] [<YYYY-MM>]

  Displays the price table, or the prices used for a month.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print as JSON")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if f.NArg() == 0 {
		if c.json {
			return printJSON(app.Prices)
		}
		printMarkdown(renderer.PricesMarkdown(app.Prices))
		return subcommands.ExitSuccess
	}

	month := f.Arg(0)
	p, err := app.Prices.LookupPrice(month)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		return printJSON(p)
	}
	fmt.Printf("%s purchase %s market %s\n", month, p.PurchasePrice, p.MarketPrice)
	return subcommands.ExitSuccess
}
