package transform

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"bankcap/lib/telemetry"
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("bankcap.internal.transform")

// Places is the number of decimal places every converted magnitude is
// rounded to.
const Places = 2

// RateSource resolves a currency code to its rate relative to the base
// currency.
type RateSource interface {
	Rate(code string) (decimal.Decimal, error)
}

// Convert returns round(magnitude * rate, Places), rounding half away
// from zero on the exact decimal product.
func Convert(magnitude, rate decimal.Decimal) decimal.Decimal {
	return magnitude.Mul(rate).Round(Places)
}

// Transform reindexes the extracted table to `schema` and fills every
// magnitude column from the base column. It fails as a whole on the first
// magnitude that is not a number, rows are never silently dropped.
func Transform(ctx context.Context, table dataset.Table, rates RateSource, schema dataset.Schema, base string) (dataset.Dataset, error) {
	ctx, span := tracer.Start(ctx, "Transform")
	defer span.End()

	err := schema.Validate(base)
	if err != nil {
		return dataset.Dataset{}, etlerr.Parse(err, "invalid target schema")
	}

	magnitudes := schema.Magnitudes()
	baseColumn, _ := schema.BaseColumn(base)

	// every rate is resolved up front so a missing currency fails before
	// any row is touched
	factors := make([]decimal.Decimal, len(magnitudes))
	baseIdx := -1
	for i, c := range magnitudes {
		if c.Name == baseColumn.Name {
			baseIdx = i
			continue
		}
		factors[i], err = rates.Rate(c.Currency)
		if err != nil {
			span.RecordError(err)
			return dataset.Dataset{}, err
		}
	}

	reindexed := table.Reindex(schema.Names())
	nameColumn := schema.NameColumn().Name

	out := dataset.Dataset{
		Schema:  schema,
		Records: make([]dataset.Record, 0, len(reindexed.Rows)),
	}
	for i := range reindexed.Rows {
		name := reindexed.Cell(i, nameColumn)
		text := reindexed.Cell(i, baseColumn.Name)

		magnitude, err := parseMagnitude(text)
		if err != nil {
			err = etlerr.Conversion(err, "row %d (%q): magnitude %q is not a number", i, name, text)
			span.RecordError(err)
			return dataset.Dataset{}, err
		}

		record := schema.NewRecord(name)
		for idx := range magnitudes {
			if idx == baseIdx {
				record.Values[idx] = dataset.Valid(magnitude)
				continue
			}
			record.Values[idx] = dataset.Valid(Convert(magnitude, factors[idx]))
		}
		out.Records = append(out.Records, record)
	}

	span.SetAttributes(attribute.Int("records", len(out.Records)))
	return out, nil
}

func parseMagnitude(text string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(text))
}
