package dataset

// Table is the text-valued form of a dataset, the shape the extract
// stage produces before anything has been parsed.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) columnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Reindex returns a copy of the table with exactly `columns`, in that
// order. Cells are carried over by column name, columns the table does
// not have are backfilled with "" and rows are never dropped.
func (t Table) Reindex(columns []string) Table {
	mapping := make([]int, len(columns))
	for i, c := range columns {
		mapping[i] = t.columnIndex(c)
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(columns))
		for i, src := range mapping {
			if src >= 0 && src < len(row) {
				out[i] = row[src]
			}
		}
		rows[r] = out
	}

	return Table{
		Columns: append([]string(nil), columns...),
		Rows:    rows,
	}
}

// Cell returns the value of `column` in row `row`, or "" if either is absent.
func (t Table) Cell(row int, column string) string {
	idx := t.columnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}
