// Package cmd implements the CLI application to reconcile and tax gold holdings.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/aurum"
	"github.com/etnz/aurum/events"
	"github.com/etnz/aurum/kv"
	"github.com/etnz/aurum/ledger"
	"github.com/etnz/aurum/metrics"
	"github.com/etnz/aurum/session"
	"github.com/etnz/aurum/store"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&holdingsCmd{}, "holdings")
	c.Register(&trackCmd{}, "holdings")
	c.Register(&taxCmd{}, "holdings")
	c.Register(&pricesCmd{}, "holdings")

	c.Register(&registerCmd{}, "assets")
	c.Register(&transferCmd{}, "assets")

	c.Register(&sessionCmd{}, "")
	c.Register(&serveCmd{}, "")
	c.Register(&topicCmd{}, "")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile = flag.String("config", "", "Path to a YAML configuration file (env "+EnvConfig+")")
	dataDir    = flag.String("data", "", "Folder of the local data: session, caches and simulations (env "+EnvData+")")
	ledgerURL  = flag.String("ledger", "", "JSON-RPC endpoint of the ledger, empty for the in-process ledger (env "+EnvLedgerURL+")")
	ledgerID   = flag.String("ledger-id", "", "Ledger account, defaults to the session address (env "+EnvLedgerID+")")
	storeURL   = flag.String("store", "", "Durable store gateway, empty for the local simulation (env "+EnvStoreURL+")")
	ownerMatch = flag.String("owner-match", "", "Owner matching of store queries: exact, fold or fold-or-orphan (env "+EnvOwnerMatch+")")
	taxBasis   = flag.String("basis", "", "Default tax basis: last-transfer or original (env "+EnvTaxBasis+")")
	pricesFile = flag.String("prices", "", "JSON file of monthly prices, empty for the embedded table (env "+EnvPrices+")")
	kafka      = flag.String("kafka", "", "Comma separated kafka brokers for domain events (env "+EnvKafka+")")
	kafkaTopic = flag.String("kafka-topic", "", "Kafka topic of domain events (env "+EnvKafkaTopic+")")
	Verbose    = flag.Bool("v", false, "verbose logging (env "+EnvVerbose+")")
)

func globalFlags() Flags {
	return Flags{
		Config:     *configFile,
		Data:       *dataDir,
		LedgerURL:  *ledgerURL,
		LedgerID:   *ledgerID,
		StoreURL:   *storeURL,
		OwnerMatch: *ownerMatch,
		TaxBasis:   *taxBasis,
		Prices:     *pricesFile,
		Kafka:      *kafka,
		KafkaTopic: *kafkaTopic,
		Verbose:    *Verbose,
	}
}

// App wires every component of the application.
type App struct {
	Settings Settings
	Logger   *slog.Logger
	Clock    func() time.Time
	KV       kv.Store

	Session   *session.Manager
	Ledger    aurum.Ledger
	Registrar *aurum.Registrar
	Store     *store.Adapter
	Holdings  *aurum.Holdings
	Tracker   *aurum.Tracker
	Resolver  *aurum.Resolver
	Tax       *aurum.TaxEngine
	Prices    *aurum.PriceTable
	Metrics   *metrics.Metrics

	Publisher events.Publisher
	closers   []io.Closer
}

// NewApp builds the application from resolved settings.
//
// Without a ledger endpoint the ledger is simulated in the data folder, and
// without a store gateway only the store simulation is used.
func NewApp(s Settings, kvs kv.Store, clock func() time.Time, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	a := &App{Settings: s, Logger: logger, Clock: clock, KV: kvs}

	match := store.MatchFoldOrOrphan
	if s.OwnerMatch != "" {
		m, err := store.ParseOwnerMatch(s.OwnerMatch)
		if err != nil {
			return nil, err
		}
		match = m
	}
	basis, err := aurum.ParseBasis(s.TaxBasis)
	if err != nil {
		return nil, err
	}
	a.Prices = aurum.DefaultPrices()
	if s.Prices != "" {
		if a.Prices, err = aurum.LoadPrices(s.Prices); err != nil {
			return nil, err
		}
	}

	a.Metrics = metrics.New(prometheus.NewRegistry())

	a.Session = session.New(session.Options{
		Store:         kvs,
		Logger:        logger.With("component", "session"),
		Clock:         clock,
		CheckInterval: s.CheckInterval,
		Observer:      a.Metrics,
	})

	var registrar aurum.LedgerRegistrar
	if s.LedgerURL != "" {
		c := ledger.NewClient(s.LedgerURL)
		a.Ledger, registrar = c, c
	} else {
		m := &ledger.Memory{Store: kvs}
		a.Ledger, registrar = m, m
	}

	a.Store = &store.Adapter{
		Simulation: &store.Simulation{Store: kvs, Clock: clock},
		Match:      match,
		Logger:     logger.With("component", "store"),
		Observer:   a.Metrics,
		Clock:      clock,
	}
	if s.StoreURL != "" {
		a.Store.Gateway = store.NewHTTPGateway(s.StoreURL, a.Session)
	}

	a.Publisher = events.Log{Logger: logger}
	if len(s.KafkaBrokers) > 0 {
		k, err := events.NewKafka(events.KafkaConfig{Brokers: s.KafkaBrokers, Topic: s.KafkaTopic}, logger)
		if err != nil {
			return nil, err
		}
		a.Publisher = k
		a.closers = append(a.closers, k)
	}

	a.Holdings = &aurum.Holdings{
		Ledger:   a.Ledger,
		Store:    a.Store,
		Cache:    &aurum.SnapshotCache{TTL: s.TTL, Store: kvs},
		Clock:    clock,
		Logger:   logger.With("component", "holdings"),
		Observer: a.Metrics,
		Match:    match.Matches,
	}
	a.Tracker = &aurum.Tracker{Store: a.Store, Publisher: a.Publisher, Holdings: a.Holdings, Clock: clock, Logger: logger}
	a.Resolver = &aurum.Resolver{Ledger: a.Ledger, Store: a.Store, Clock: clock, Logger: logger}
	a.Registrar = &aurum.Registrar{Ledger: registrar, Store: a.Store, Publisher: a.Publisher, Holdings: a.Holdings, Clock: clock, Logger: logger}
	a.Tax = &aurum.TaxEngine{Prices: a.Prices, Basis: basis, Clock: clock, Logger: logger}
	return a, nil
}

// LedgerIdentity returns the configured ledger account, or the session address.
func (a *App) LedgerIdentity(ctx context.Context) (string, error) {
	if a.Settings.LedgerID != "" {
		return a.Settings.LedgerID, nil
	}
	return a.Session.StoreAddress(ctx)
}

// Owner returns owner, or the session address when it is empty.
func (a *App) Owner(ctx context.Context, owner string) (string, error) {
	if owner != "" {
		return owner, nil
	}
	return a.Session.StoreAddress(ctx)
}

// Close releases the event publisher.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openApp resolves the global settings and builds the application on the data folder.
//
// With a store gateway the session is loaded at once, as it signs store writes.
func openApp(ctx context.Context) (*App, error) {
	s, err := Resolve(globalFlags(), os.Getenv)
	if err != nil {
		return nil, err
	}
	now, err := clock(os.Getenv)
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if s.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	kvs, err := kv.OpenDir(s.Data)
	if err != nil {
		return nil, err
	}
	app, err := NewApp(s, kvs, now, logger)
	if err != nil {
		return nil, err
	}
	if s.StoreURL != "" {
		if err := app.Session.Load(ctx); err != nil {
			logger.Warn("session not ready, store writes use the simulation", "error", err)
		}
	}
	return app, nil
}

// printMarkdown renders md on the terminal, or prints it raw when it cannot be rendered.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// printJSON prints v as a single JSON line.
func printJSON(v any) subcommands.ExitStatus {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(data))
	return subcommands.ExitSuccess
}
