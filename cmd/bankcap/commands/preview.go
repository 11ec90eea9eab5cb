package commands

import (
	"bankcap/internal/rates"
	"bankcap/internal/transform"
	"bankcap/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview [url]",
	Short: "Extracts and transforms the source page and prints the result without writing anything.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if len(args) == 1 {
			cfg.Source.Url = args[0]
		}
		schema := cfg.Schema()

		extracted, err := newExtractor(cfg).Extract(cmd.Context(), cfg.Source.Url, schema.ExtractColumns(cfg.BaseCurrency))
		if err != nil {
			serviceutil.Fatal("failed to extract", err, "url", cfg.Source.Url)
		}
		rateTable, err := rates.Load(cfg.RatesFile)
		if err != nil {
			serviceutil.Fatal("failed to load exchange rates", err)
		}
		ds, err := transform.Transform(cmd.Context(), extracted, rateTable, schema, cfg.BaseCurrency)
		if err != nil {
			serviceutil.Fatal("failed to transform", err)
		}

		t := newTable()
		header := table.Row{}
		for _, name := range schema.Names() {
			header = append(header, name)
		}
		t.AppendHeader(header)
		for _, row := range ds.StringRows() {
			r := make(table.Row, len(row))
			for i, cell := range row {
				r[i] = cell
			}
			t.AppendRow(r)
		}
		t.Render()
	},
}
