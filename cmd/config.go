package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read when the matching flag is not set.
const (
	EnvConfig      = "AURUM_CONFIG"
	EnvData        = "AURUM_DATA"
	EnvLedgerURL   = "AURUM_LEDGER_URL"
	EnvLedgerID    = "AURUM_LEDGER_ID"
	EnvStoreURL    = "AURUM_STORE_URL"
	EnvOwnerMatch  = "AURUM_OWNER_MATCH"
	EnvTaxBasis    = "AURUM_TAX_BASIS"
	EnvPrices      = "AURUM_PRICES"
	EnvKafka       = "AURUM_KAFKA_BROKERS"
	EnvKafkaTopic  = "AURUM_KAFKA_TOPIC"
	EnvVerbose     = "AURUM_VERBOSE"
	EnvTestingNow  = "AURUM_TESTING_NOW"
	testingNowForm = "2006-01-02 15:04:05"
)

// Defaults of the settings.
const (
	DefaultData       = ".aurum"
	DefaultKafkaTopic = "aurum.gold"
)

// FileConfig is the layout of the YAML configuration file.
type FileConfig struct {
	Data   string `yaml:"data"`
	Ledger struct {
		URL      string `yaml:"url"`
		Identity string `yaml:"identity"`
	} `yaml:"ledger"`
	Store struct {
		URL        string `yaml:"url"`
		OwnerMatch string `yaml:"ownerMatch"`
	} `yaml:"store"`
	Tax struct {
		Basis  string `yaml:"basis"`
		Prices string `yaml:"prices"`
	} `yaml:"tax"`
	Events struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"events"`
	Holdings struct {
		TTL             time.Duration `yaml:"ttl"`
		RefreshInterval time.Duration `yaml:"refreshInterval"`
	} `yaml:"holdings"`
	Session struct {
		CheckInterval time.Duration `yaml:"checkInterval"`
	} `yaml:"session"`
}

// LoadFileConfig reads a YAML configuration file. An empty path gives an
// empty configuration.
func LoadFileConfig(path string) (FileConfig, error) {
	var c FileConfig
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("cannot read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return c, nil
}

// Settings are the resolved settings of the application.
type Settings struct {
	Data            string
	LedgerURL       string
	LedgerID        string
	StoreURL        string
	OwnerMatch      string
	TaxBasis        string
	Prices          string
	KafkaBrokers    []string
	KafkaTopic      string
	TTL             time.Duration
	RefreshInterval time.Duration
	CheckInterval   time.Duration
	Verbose         bool
}

// Flags are the raw values of the global flags.
type Flags struct {
	Config, Data, LedgerURL, LedgerID, StoreURL, OwnerMatch, TaxBasis, Prices, Kafka, KafkaTopic string
	Verbose                                                                                     bool
}

// first returns the first non blank value.
func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Resolve merges flags, environment and configuration file: a flag wins
// over the environment, which wins over the file.
func Resolve(f Flags, getenv func(string) string) (Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	fc, err := LoadFileConfig(first(f.Config, getenv(EnvConfig)))
	if err != nil && !(f.Config == "" && errors.Is(err, fs.ErrNotExist)) {
		return Settings{}, err
	}
	s := Settings{
		Data:            first(f.Data, getenv(EnvData), fc.Data, DefaultData),
		LedgerURL:       first(f.LedgerURL, getenv(EnvLedgerURL), fc.Ledger.URL),
		LedgerID:        first(f.LedgerID, getenv(EnvLedgerID), fc.Ledger.Identity),
		StoreURL:        first(f.StoreURL, getenv(EnvStoreURL), fc.Store.URL),
		OwnerMatch:      first(f.OwnerMatch, getenv(EnvOwnerMatch), fc.Store.OwnerMatch),
		TaxBasis:        first(f.TaxBasis, getenv(EnvTaxBasis), fc.Tax.Basis),
		Prices:          first(f.Prices, getenv(EnvPrices), fc.Tax.Prices),
		KafkaTopic:      first(f.KafkaTopic, getenv(EnvKafkaTopic), fc.Events.Topic, DefaultKafkaTopic),
		TTL:             fc.Holdings.TTL,
		RefreshInterval: fc.Holdings.RefreshInterval,
		CheckInterval:   fc.Session.CheckInterval,
		Verbose:         f.Verbose || getenv(EnvVerbose) != "",
	}
	switch {
	case f.Kafka != "":
		s.KafkaBrokers = splitList(f.Kafka)
	case getenv(EnvKafka) != "":
		s.KafkaBrokers = splitList(getenv(EnvKafka))
	default:
		s.KafkaBrokers = fc.Events.Brokers
	}
	return s, nil
}

// clock returns time.Now, or a fixed time when AURUM_TESTING_NOW is set.
func clock(getenv func(string) string) (func() time.Time, error) {
	v := getenv(EnvTestingNow)
	if v == "" {
		return time.Now, nil
	}
	t, err := time.ParseInLocation(testingNowForm, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTestingNow, v, err)
	}
	return func() time.Time { return t }, nil
}
