package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type sessionCmd struct{}

func (*sessionCmd) Name() string     { return "session" }
func (*sessionCmd) Synopsis() string { return "show or reset the store identity" }
func (*sessionCmd) Usage() string {
	return `aurum session [show|reconnect|clear]

  show       prints the state and address of the session (default)
  reconnect  re-derives, reloads or regenerates the identity
  clear      removes the identity, a new one is generated on next use
`
}

func (c *sessionCmd) SetFlags(f *flag.FlagSet) {}

func (c *sessionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action := "show"
	if f.NArg() > 0 {
		action = f.Arg(0)
	}
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()
	m := app.Session

	switch action {
	case "show":
		if err := m.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading session: %v\n", err)
			return subcommands.ExitFailure
		}
	case "reconnect":
		if err := m.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if err := m.Reconnect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error reconnecting session: %v\n", err)
			return subcommands.ExitFailure
		}
	case "clear":
		if err := m.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing session: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println("session cleared")
		return subcommands.ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "unknown session action %q\n", action)
		return subcommands.ExitUsageError
	}
	fmt.Printf("state:   %s\naddress: %s\n", m.State(), m.Address())
	return subcommands.ExitSuccess
}
