package commands

import (
	"bankcap/internal/config"
	"bankcap/lib/serviceutil"
	"bankcap/lib/telemetry"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	tel        telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "bankcap",
	Short: "bankcap scrapes bank market capitalizations, converts them to other currencies and loads them into a csv file and a sqlite table.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)

		var err error
		tel, err = telemetry.SetupFromEnv(cmd.Context(), "bankcap")
		if err != nil {
			slog.Warn("failed to setup telemetry, continuing without it", "err", err)
		}
		// Fatal exits before PersistentPostRun
		serviceutil.AtExit(shutdownTelemetry)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := tel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file, a sibling config.local.json5 overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and raw http dumps.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readConfig() config.Config {
	cfg, err := config.Read(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err, "file", configPath)
	}
	cfg, err = cfg.ResolvePaths()
	if err != nil {
		serviceutil.Fatal("failed to resolve config paths", err)
	}
	return cfg
}

func openStore(cfg config.Config) *sql.DB {
	db, err := cfg.Store.OpenDB()
	if err != nil {
		serviceutil.Fatal("failed to open store", err, "file", cfg.Store.File, "url", cfg.Store.Url)
	}
	return db
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
