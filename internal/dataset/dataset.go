package dataset

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is one entity with one value per magnitude column, aligned with
// Schema.Magnitudes(). An invalid value is a null/pending cell.
type Record struct {
	Name   string
	Values []decimal.NullDecimal
}

// Dataset is an ordered sequence of records sharing a single schema.
// Order is the source document order.
type Dataset struct {
	Schema  Schema
	Records []Record
}

// NewRecord returns a record for `name` with every magnitude pending.
func (s Schema) NewRecord(name string) Record {
	return Record{
		Name:   name,
		Values: make([]decimal.NullDecimal, len(s.Magnitudes())),
	}
}

// Validate rejects ragged records.
func (d Dataset) Validate() error {
	width := len(d.Schema.Magnitudes())
	for i, r := range d.Records {
		if len(r.Values) != width {
			return fmt.Errorf("record %d (%q) has %d values, the schema has %d magnitude columns", i, r.Name, len(r.Values), width)
		}
	}
	return nil
}

// Value returns the value of magnitude column `column` for record `i`.
func (d Dataset) Value(i int, column string) decimal.NullDecimal {
	for idx, c := range d.Schema.Magnitudes() {
		if c.Name == column {
			return d.Records[i].Values[idx]
		}
	}
	return decimal.NullDecimal{}
}

// Row returns record `i` as driver values in schema order: the name as a
// string, magnitudes as float64 and nulls as nil.
func (d Dataset) Row(i int) []any {
	record := d.Records[i]
	row := make([]any, 0, len(record.Values)+1)
	row = append(row, record.Name)
	for _, v := range record.Values {
		if !v.Valid {
			row = append(row, nil)
			continue
		}
		row = append(row, v.Decimal.InexactFloat64())
	}
	return row
}

// StringRows renders every record as text in schema order, nulls as "".
func (d Dataset) StringRows() [][]string {
	rows := make([][]string, len(d.Records))
	for i, record := range d.Records {
		row := make([]string, 0, len(record.Values)+1)
		row = append(row, record.Name)
		for _, v := range record.Values {
			if !v.Valid {
				row = append(row, "")
				continue
			}
			row = append(row, FormatMagnitude(v.Decimal))
		}
		rows[i] = row
	}
	return rows
}

// FormatMagnitude renders the shortest exact decimal text, always keeping a
// fractional part (8040 -> "8040.0", 45.230 -> "45.23").
func FormatMagnitude(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Valid wraps a computed value as a non-null cell.
func Valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
