package load

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
)

// CSVLoader writes the dataset as a comma-delimited file with a header row
// and no index column, overwriting Path.
type CSVLoader struct {
	Path string
}

func (l CSVLoader) Name() string {
	return "csv"
}

func (l CSVLoader) Load(ctx context.Context, ds dataset.Dataset) error {
	_, span := tracer.Start(ctx, "CSVLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("path", l.Path))

	err := l.write(ds)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// write goes through a temp file in the destination directory so readers
// only ever see a complete file.
func (l CSVLoader) write(ds dataset.Dataset) error {
	dir := filepath.Dir(l.Path)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return etlerr.Persistence(err, "create output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.Path)+".*")
	if err != nil {
		return etlerr.Persistence(err, "create temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	err = WriteCSV(tmp, ds)
	if err != nil {
		tmp.Close()
		return etlerr.Persistence(err, "write %s", l.Path)
	}
	err = tmp.Close()
	if err != nil {
		return etlerr.Persistence(err, "write %s", l.Path)
	}
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		return etlerr.Persistence(err, "set permissions on %s", l.Path)
	}

	err = os.Rename(tmp.Name(), l.Path)
	if err != nil {
		return etlerr.Persistence(err, "replace %s", l.Path)
	}
	return nil
}

// WriteCSV serializes the header and every record in order.
func WriteCSV(w io.Writer, ds dataset.Dataset) error {
	err := ds.Validate()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	err = writer.Write(ds.Schema.Names())
	if err != nil {
		return err
	}
	for i, row := range ds.StringRows() {
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
