package commands

import (
	"bankcap/internal/dataset"
	"bankcap/internal/rates"
	"bankcap/lib/serviceutil"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ratesCmd)
}

// currencyColumns maps each upper-cased currency code to the column holding it.
func currencyColumns(schema dataset.Schema) map[string]string {
	used := map[string]string{}
	for _, column := range schema.Magnitudes() {
		used[strings.ToUpper(column.Currency)] = column.Name
	}
	return used
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Prints the exchange rate table and the columns that use it.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		rateTable, err := rates.Load(cfg.RatesFile)
		if err != nil {
			serviceutil.Fatal("failed to load exchange rates", err)
		}

		used := currencyColumns(cfg.Schema())

		t := newTable()
		t.AppendHeader(table.Row{"Currency", "Rate", "Column"})
		for _, code := range rateTable.Codes() {
			rate, _ := rateTable.Rate(code)
			t.AppendRow(table.Row{code, rate.String(), used[code]})
		}
		t.AppendFooter(table.Row{"base", cfg.BaseCurrency, used[strings.ToUpper(cfg.BaseCurrency)]})
		t.Render()

		for _, column := range cfg.Schema().Magnitudes() {
			if strings.EqualFold(column.Currency, cfg.BaseCurrency) {
				continue
			}
			_, err := rateTable.Rate(column.Currency)
			if err != nil {
				serviceutil.Fatal("column has no exchange rate", err, "column", column.Name)
			}
		}
	},
}
