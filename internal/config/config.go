package config

import (
	devenv "bankcap/dev/env"
	"bankcap/internal/dataset"
	"bankcap/internal/load"
	"bankcap/lib/configutil"
	configsqlite "bankcap/lib/configutil/sqlite"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Source struct {
	Url              string `json:"url"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	UserAgent        string `json:"user_agent"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

func (s Source) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type Output struct {
	Csv string `json:"csv"`
}

type Store struct {
	configsqlite.Struct
	// Disabled turns the store load and the query stage into no-ops.
	Disabled bool   `json:"disabled"`
	Table    string `json:"table"`
}

type Config struct {
	Source       Source           `json:"source"`
	RatesFile    string           `json:"rates_file"`
	BaseCurrency string           `json:"base_currency"`
	Columns      []dataset.Column `json:"columns"`
	Output       Output           `json:"output"`
	Store        Store            `json:"store"`
	// Queries run after the store load. An empty list falls back to the
	// defaults, SkipQueries turns the stage off.
	Queries     []string `json:"queries"`
	SkipQueries bool     `json:"skip_queries"`
	ProgressLog string   `json:"progress_log"`
	// HttpDumpDir receives raw request/response dumps when logging verbosely,
	// dumps are off when it is empty.
	HttpDumpDir string `json:"http_dump_dir"`
}

// Defaults is the reference instantiation: the archived list of largest
// banks by market capitalization, converted to GBP, EUR and INR.
func Defaults() Config {
	return Config{
		Source: Source{
			Url:            "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks",
			TimeoutSeconds: 30,
		},
		RatesFile:    "assets/exchange_rate.csv",
		BaseCurrency: "USD",
		Columns: []dataset.Column{
			{Name: "Name"},
			{Name: "MC_USD_Billion", Currency: "USD"},
			{Name: "MC_GBP_Billion", Currency: "GBP"},
			{Name: "MC_EUR_Billion", Currency: "EUR"},
			{Name: "MC_INR_Billion", Currency: "INR"},
		},
		Output: Output{Csv: "output/Largest_banks_data.csv"},
		Store: Store{
			Struct: configsqlite.Struct{File: "Banks.db"},
			Table:  "Largest_banks",
		},
		Queries: []string{
			"SELECT * FROM Largest_banks",
			"SELECT AVG(MC_GBP_Billion) FROM Largest_banks",
			"SELECT Name FROM Largest_banks LIMIT 5",
		},
		ProgressLog: "logs/code_log.txt",
	}
}

// Read loads `path` (plus its .local override) on top of Defaults.
func Read(path string) (Config, error) {
	cfg, err := configutil.ReadWithDefaults(path, Defaults())
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ActiveQueries is the query list the run executes.
func (c Config) ActiveQueries() []string {
	if c.SkipQueries {
		return nil
	}
	return c.Queries
}

func (c Config) Schema() dataset.Schema {
	return dataset.Schema{Columns: c.Columns}
}

func (c Config) Validate() error {
	link, err := url.Parse(c.Source.Url)
	if err != nil || link.Scheme == "" || link.Host == "" {
		return fmt.Errorf("source.url %q is not an absolute url", c.Source.Url)
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be positive")
	}
	if c.RatesFile == "" {
		return fmt.Errorf("rates_file is required")
	}
	if strings.TrimSpace(c.BaseCurrency) == "" {
		return fmt.Errorf("base_currency is required")
	}
	err = c.Schema().Validate(c.BaseCurrency)
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	if c.Output.Csv == "" {
		return fmt.Errorf("output.csv is required")
	}
	if !c.Store.Disabled {
		if !load.ValidIdentifier(c.Store.Table) {
			return fmt.Errorf("store.table %q is not a valid table name", c.Store.Table)
		}
		if c.Store.File == "" && c.Store.Url == "" {
			return fmt.Errorf("store.file or store.url is required")
		}
	}
	return nil
}

// ResolvePaths expands "<dev_state>" prefixes on every local path. The
// store file is resolved when it is opened.
func (c Config) ResolvePaths() (Config, error) {
	paths := []*string{&c.RatesFile, &c.Output.Csv, &c.ProgressLog, &c.HttpDumpDir}
	for _, path := range paths {
		if *path == "" {
			continue
		}
		resolved, err := devenv.ResolvePath(*path)
		if err != nil {
			return c, fmt.Errorf("resolve %s: %w", *path, err)
		}
		*path = resolved
	}
	return c, nil
}
