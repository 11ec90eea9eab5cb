package pipeline

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"bankcap/internal/extract"
	"bankcap/internal/load"
	"bankcap/internal/query"
	"bankcap/lib/testutil"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sourceMarkup = `<html><body><table><tbody>
<tr><th>Rank</th><th>Bank</th><th>Market cap</th></tr>
<tr><td>1</td><td> Bank A </td><td>100.5</td></tr>
<tr><td>2</td><td>Bank B</td><td> 50.25 </td></tr>
</tbody></table></body></html>`

const expectedCSV = `Name,MC_USD_Billion,MC_GBP_Billion,MC_EUR_Billion,MC_INR_Billion
Bank A,100.5,80.4,90.45,8040.0
Bank B,50.25,40.2,45.23,4020.0
`

var schema = dataset.Schema{Columns: []dataset.Column{
	{Name: "Name"},
	{Name: "MC_USD_Billion", Currency: "USD"},
	{Name: "MC_GBP_Billion", Currency: "GBP"},
	{Name: "MC_EUR_Billion", Currency: "EUR"},
	{Name: "MC_INR_Billion", Currency: "INR"},
}}

type fixture struct {
	pipeline Pipeline
	sink     *testutil.RecordingSink
	csvPath  string
	store    load.StoreLoader
}

func newFixture(t *testing.T, markup string, status int) fixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(markup))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	ratesPath := filepath.Join(dir, "exchange_rate.csv")
	err := os.WriteFile(ratesPath, []byte("Currency,Rate\nGBP,0.8\nEUR,0.9\nINR,80\n"), 0600)
	require.NoError(t, err)

	db := testutil.OpenDB(t)
	sink := &testutil.RecordingSink{}
	csvPath := filepath.Join(dir, "output", "Largest_banks_data.csv")
	store := load.StoreLoader{DB: db, Table: "Largest_banks"}

	return fixture{
		pipeline: Pipeline{
			Source:       server.URL,
			Schema:       schema,
			BaseCurrency: "USD",
			Extractor:    extract.New(extract.Options{}),
			Rates:        RatesFile(ratesPath),
			Loaders:      []load.Loader{load.CSVLoader{Path: csvPath}, store},
			Queries: []string{
				"SELECT * FROM Largest_banks",
				"SELECT AVG(MC_GBP_Billion) FROM Largest_banks",
				"SELECT Name FROM Largest_banks LIMIT 1",
			},
			Runner: &query.Runner{DB: db},
			Sink:   sink,
		},
		sink:    sink,
		csvPath: csvPath,
		store:   store,
	}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, sourceMarkup, http.StatusOK)

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 2, report.Records)
	require.Len(t, report.Results, 3)

	contents, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)
	require.Equal(t, expectedCSV, string(contents))

	all := report.Results[0].Result
	require.Equal(t, schema.Names(), all.Columns)
	require.Equal(t, 2, all.RowCount())

	avg := report.Results[1].Result
	require.Equal(t, 1, avg.RowCount())
	require.InDelta(t, 60.3, avg.Rows[0][0], 1e-9)

	first := report.Results[2].Result
	require.Equal(t, [][]any{{"Bank A"}}, first.Rows)

	require.Equal(t, []string{
		"Data extraction started",
		"Data extraction finished",
		"Data transformation started",
		"Data transformation finished",
		"Load data to csv started",
		"Load data to csv finished",
		"Load data to db started",
		"Load data to db finished",
		"Run query 'SELECT * FROM Largest_banks' started",
		"Run query 'SELECT * FROM Largest_banks' executed",
		"Run query 'SELECT AVG(MC_GBP_Billion) FROM Largest_banks' started",
		"Run query 'SELECT AVG(MC_GBP_Billion) FROM Largest_banks' executed",
		"Run query 'SELECT Name FROM Largest_banks LIMIT 1' started",
		"Run query 'SELECT Name FROM Largest_banks LIMIT 1' executed",
	}, f.sink.Messages())
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, sourceMarkup, http.StatusOK)

	_, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)

	second, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	contents, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)

	require.Equal(t, first, contents)
	require.Equal(t, 2, testutil.CountRows(t, f.store.DB, "Largest_banks"))
	require.Equal(t, 2, second.Results[0].Result.RowCount())
}

func TestRunExtractFailureWritesNothing(t *testing.T) {
	f := newFixture(t, "gone", http.StatusNotFound)

	_, err := f.pipeline.Run(context.Background())
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageExtract, stageErr.Stage)
	require.Equal(t, etlerr.KindFetch, etlerr.KindOf(err))

	_, statErr := os.Stat(f.csvPath)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
	messages := f.sink.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "Data extraction started", messages[0])
	require.True(t, strings.HasPrefix(messages[1], "Error occurred with data extraction : "))
}

func TestRunEmptyTableIsParseFailure(t *testing.T) {
	f := newFixture(t, "<table><tbody><tr></tr></tbody></table>", http.StatusOK)

	_, err := f.pipeline.Run(context.Background())
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageExtract, stageErr.Stage)
	require.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
	require.True(t, errors.Is(err, extract.ErrNoRows))

	_, statErr := os.Stat(f.csvPath)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunConversionFailure(t *testing.T) {
	markup := `<table><tbody>
<tr><td>1</td><td>Bank A</td><td>100.5</td></tr>
<tr><td>2</td><td>Bank B</td><td>n/a</td></tr>
</tbody></table>`
	f := newFixture(t, markup, http.StatusOK)

	_, err := f.pipeline.Run(context.Background())
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageTransform, stageErr.Stage)
	require.Equal(t, etlerr.KindConversion, etlerr.KindOf(err))

	_, statErr := os.Stat(f.csvPath)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunMissingRates(t *testing.T) {
	f := newFixture(t, sourceMarkup, http.StatusOK)
	f.pipeline.Rates = RatesFile(filepath.Join(t.TempDir(), "missing.csv"))

	_, err := f.pipeline.Run(context.Background())
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageTransform, stageErr.Stage)
	require.Equal(t, etlerr.KindReferenceData, etlerr.KindOf(err))
}

func TestRunWithoutStore(t *testing.T) {
	f := newFixture(t, sourceMarkup, http.StatusOK)
	f.pipeline.Loaders = []load.Loader{load.CSVLoader{Path: f.csvPath}, load.Nop{}}
	f.pipeline.Runner = nil

	report, err := f.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.Records)
	require.Empty(t, report.Results)

	contents, err := os.ReadFile(f.csvPath)
	require.NoError(t, err)
	require.Equal(t, expectedCSV, string(contents))

	var count int
	err = f.store.DB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRunQueryFailureAborts(t *testing.T) {
	f := newFixture(t, sourceMarkup, http.StatusOK)
	f.pipeline.Queries = []string{
		"SELECT Nonexistent FROM Largest_banks",
		"SELECT * FROM Largest_banks",
	}

	report, err := f.pipeline.Run(context.Background())
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	require.Equal(t, StageQuery, stageErr.Stage)
	require.Equal(t, etlerr.KindQuery, etlerr.KindOf(err))
	require.Empty(t, report.Results)
	messages := f.sink.Messages()
	require.True(t, strings.HasPrefix(messages[len(messages)-1], "Error occurred with query : "))

	// both destinations were written before the failing query
	require.Equal(t, 2, testutil.CountRows(t, f.store.DB, "Largest_banks"))
	_, statErr := os.Stat(f.csvPath)
	require.NoError(t, statErr)
}
