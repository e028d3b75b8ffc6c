package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/handlers"
	"github.com/google/subcommands"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the HTTP API" }
func (*serveCmd) Usage() string {
	return `aurum serve [-addr :8080]

  Serves holdings, assets, tax reports and metrics over HTTP.
  See 'aurum topic serve'.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", ":8080", "listen address")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening aurum: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := app.Session.Mount(ctx); err != nil {
		app.Logger.Warn("session not ready", "error", err)
	}

	handler := handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, app.Router()))
	srv := &http.Server{Addr: c.addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	app.Logger.Info("aurum API listening", "addr", c.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
