package commands

import (
	"bankcap/internal/config"
	"bankcap/internal/etlerr"
	"bankcap/internal/extract"
	"bankcap/internal/load"
	"bankcap/internal/pipeline"
	"bankcap/internal/progress"
	"bankcap/internal/query"
	"bankcap/lib/restyutil"
	"bankcap/lib/serviceutil"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	runNoStore   bool
	runNoQueries bool
	runUrl       string
)

func init() {
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip the database load and the queries.")
	runCmd.Flags().BoolVar(&runNoQueries, "no-queries", false, "Load the data but skip the configured queries.")
	runCmd.Flags().StringVar(&runUrl, "url", "", "Override the source page url.")
	rootCmd.AddCommand(runCmd)
}

func newExtractor(cfg config.Config) *extract.Extractor {
	opts := extract.Options{
		Timeout:          cfg.Source.Timeout(),
		UserAgent:        cfg.Source.UserAgent,
		CloudflareBypass: cfg.Source.CloudflareBypass,
	}
	if verbose && cfg.HttpDumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.HttpDumpDir)
		if err != nil {
			slog.Warn("http dumps disabled", "dir", cfg.HttpDumpDir, "err", err)
		} else {
			opts.Instrument = output
		}
	}
	return extract.New(opts)
}

func fatalRun(err error) {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		serviceutil.Fatal("run failed", err, "stage", stageErr.Stage, "kind", etlerr.KindOf(err))
	}
	serviceutil.Fatal("run failed", err)
}

func runPipeline(ctx context.Context, cfg config.Config) (pipeline.Report, error) {
	p := pipeline.Pipeline{
		Source:       cfg.Source.Url,
		Schema:       cfg.Schema(),
		BaseCurrency: cfg.BaseCurrency,
		Extractor:    newExtractor(cfg),
		Rates:        pipeline.RatesFile(cfg.RatesFile),
		Loaders:      []load.Loader{load.CSVLoader{Path: cfg.Output.Csv}},
		Queries:      cfg.ActiveQueries(),
		Sink: progress.Multi(
			progress.NewFileSink(cfg.ProgressLog),
			progress.SlogSink{},
		),
	}

	if cfg.Store.Disabled {
		p.Loaders = append(p.Loaders, load.Nop{})
		return p.Run(ctx)
	}

	db := openStore(cfg)
	defer db.Close()
	p.Loaders = append(p.Loaders, load.StoreLoader{DB: db, Table: cfg.Store.Table})
	p.Runner = &query.Runner{DB: db}
	return p.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run [--no-store] [--no-queries] [--url <source>]",
	Short: "Runs extract, transform, load and the configured queries once.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if runUrl != "" {
			cfg.Source.Url = runUrl
		}
		if runNoStore {
			cfg.Store.Disabled = true
		}
		if runNoQueries {
			cfg.SkipQueries = true
		}

		report, err := runPipeline(cmd.Context(), cfg)
		if err != nil {
			fatalRun(err)
		}

		for _, result := range report.Results {
			fmt.Println(result.Query)
			result.Result.Render(os.Stdout)
			fmt.Println()
		}
		slog.Info(
			"run complete",
			"run_id", report.RunID,
			"records", report.Records,
			"csv", cfg.Output.Csv,
			"seconds", report.Duration.Seconds(),
		)
	},
}
