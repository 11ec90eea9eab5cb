package load

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether `name` can be used as a table or
// column name without quoting surprises.
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

func quote(name string) string {
	return `"` + name + `"`
}

// StoreLoader writes the dataset into Table, replacing any existing table
// of that name. The new table is built under a staging name and swapped
// in within one transaction, so readers never see a half-written table.
type StoreLoader struct {
	DB    *sql.DB
	Table string
}

func (l StoreLoader) Name() string {
	return "db"
}

func (l StoreLoader) Load(ctx context.Context, ds dataset.Dataset) error {
	ctx, span := tracer.Start(ctx, "StoreLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("table", l.Table), attribute.Int("records", len(ds.Records)))

	err := l.load(ctx, ds)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (l StoreLoader) load(ctx context.Context, ds dataset.Dataset) error {
	if !ValidIdentifier(l.Table) {
		return etlerr.Persistence(nil, "invalid table name %q", l.Table)
	}
	for _, name := range ds.Schema.Names() {
		if !ValidIdentifier(name) {
			return etlerr.Persistence(nil, "invalid column name %q", name)
		}
	}
	err := ds.Validate()
	if err != nil {
		return etlerr.Persistence(err, "refusing to store a ragged dataset")
	}

	suffix, err := random.String(8)
	if err != nil {
		return etlerr.Persistence(err, "generate staging table name")
	}
	staging := fmt.Sprintf("%s_staging_%s", l.Table, suffix)

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return etlerr.Persistence(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, createTableStatement(staging, ds.Schema))
	if err != nil {
		return etlerr.Persistence(err, "create table %s", staging)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(staging, ds.Schema))
	if err != nil {
		return etlerr.Persistence(err, "prepare insert into %s", staging)
	}
	defer stmt.Close()

	for i := range ds.Records {
		_, err = stmt.ExecContext(ctx, ds.Row(i)...)
		if err != nil {
			return etlerr.Persistence(err, "insert row %d (%q)", i, ds.Records[i].Name)
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(l.Table)))
	if err != nil {
		return etlerr.Persistence(err, "drop table %s", l.Table)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(staging), quote(l.Table)))
	if err != nil {
		return etlerr.Persistence(err, "rename %s to %s", staging, l.Table)
	}

	err = tx.Commit()
	if err != nil {
		return etlerr.Persistence(err, "commit table %s", l.Table)
	}
	return nil
}

func createTableStatement(table string, schema dataset.Schema) string {
	columns := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		columnType := "TEXT"
		if c.IsMagnitude() {
			columnType = "REAL"
		}
		columns[i] = fmt.Sprintf("%s %s", quote(c.Name), columnType)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(columns, ", "))
}

func insertStatement(table string, schema dataset.Schema) string {
	columns := make([]string, len(schema.Columns))
	params := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		columns[i] = quote(c.Name)
		params[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quote(table),
		strings.Join(columns, ", "),
		strings.Join(params, ", "),
	)
}
