package dataset

import (
	"fmt"
	"strings"
)

// Column is one column of the final dataset. The name column has no
// currency, every other column is a magnitude in Currency.
type Column struct {
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

func (c Column) IsMagnitude() bool {
	return c.Currency != ""
}

// Schema is the ordered column layout shared by every record.
type Schema struct {
	Columns []Column
}

func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// NameColumn is the first column, which holds the entity name.
func (s Schema) NameColumn() Column {
	if len(s.Columns) == 0 {
		return Column{}
	}
	return s.Columns[0]
}

// Magnitudes returns every magnitude column in schema order.
func (s Schema) Magnitudes() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.IsMagnitude() {
			out = append(out, c)
		}
	}
	return out
}

// BaseColumn returns the magnitude column holding values in `base`.
func (s Schema) BaseColumn(base string) (Column, bool) {
	for _, c := range s.Magnitudes() {
		if strings.EqualFold(c.Currency, base) {
			return c, true
		}
	}
	return Column{}, false
}

// ExtractColumns is the schema as the extract stage sees it: the name
// column followed by the base-currency column.
func (s Schema) ExtractColumns(base string) []string {
	baseColumn, _ := s.BaseColumn(base)
	return []string{s.NameColumn().Name, baseColumn.Name}
}

func (s Schema) Validate(base string) error {
	if len(s.Columns) < 2 {
		return fmt.Errorf("schema needs a name column and at least one magnitude column")
	}
	if s.Columns[0].IsMagnitude() {
		return fmt.Errorf("the first column %q must be the name column", s.Columns[0].Name)
	}

	names := map[string]bool{}
	currencies := map[string]bool{}
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		names[c.Name] = true

		if i > 0 && !c.IsMagnitude() {
			return fmt.Errorf("column %q has no currency, only the first column may be text", c.Name)
		}
		if c.IsMagnitude() {
			code := strings.ToUpper(c.Currency)
			if currencies[code] {
				return fmt.Errorf("currency %s appears in more than one column", code)
			}
			currencies[code] = true
		}
	}

	if _, ok := s.BaseColumn(base); !ok {
		return fmt.Errorf("no column holds the base currency %s", base)
	}
	return nil
}
