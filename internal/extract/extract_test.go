package extract

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"bankcap/lib/restyutil"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var columns = []string{"Name", "MC_USD_Billion"}

func readFixture(t *testing.T) []byte {
	t.Helper()
	contents, err := os.ReadFile("testdata/largest_banks.html")
	if err != nil {
		t.Fatal(err)
	}
	return contents
}

func TestParseFixture(t *testing.T) {
	f, err := os.Open("testdata/largest_banks.html")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	table, err := Parse(context.Background(), f, columns)
	require.NoError(t, err)

	expected := dataset.Table{
		Columns: columns,
		Rows: [][]string{
			{"JPMorgan Chase", "432.92"},
			{"Bank of America", "231.52"},
			{"Industrial and Commercial Bank of China", "194.56"},
		},
	}
	if diff := cmp.Diff(expected, table); diff != "" {
		t.Fatalf("parsed table mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []struct {
		name     string
		markup   string
		columns  []string
		sentinel error
	}{
		{
			name:     "no table",
			markup:   "<html><body><p>nothing here</p></body></html>",
			columns:  columns,
			sentinel: ErrNoTable,
		},
		{
			name:     "header only",
			markup:   "<table><tbody><tr><th>Rank</th><th>Name</th><th>Cap</th></tr></tbody></table>",
			columns:  columns,
			sentinel: ErrNoRows,
		},
		{
			name:    "short row",
			markup:  "<table><tbody><tr><td>1</td><td>Bank A</td></tr></tbody></table>",
			columns: columns,
		},
		{
			name:    "bad columns",
			markup:  "<table><tbody><tr><td>1</td><td>Bank A</td><td>1</td></tr></tbody></table>",
			columns: []string{"Name"},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(context.Background(), strings.NewReader(test.markup), test.columns)
			require.Error(t, err)
			require.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
			if test.sentinel != nil {
				require.True(t, errors.Is(err, test.sentinel))
			}
		})
	}
}

func TestExtractFromServer(t *testing.T) {
	fixture := readFixture(t)
	userAgents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(fixture)
	}))
	defer server.Close()

	table, err := New(Options{}).Extract(context.Background(), server.URL, columns)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	require.Equal(t, "JPMorgan Chase", table.Rows[0][0])
	require.Equal(t, DefaultUserAgent, <-userAgents)
}

func TestExtractStatusError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(Options{}).Extract(context.Background(), server.URL, columns)
	require.Error(t, err)
	require.Equal(t, etlerr.KindFetch, etlerr.KindOf(err))

	var etlErr *etlerr.Error
	require.True(t, errors.As(err, &etlErr))
	require.Equal(t, http.StatusServiceUnavailable, etlErr.StatusCode)
	require.EqualValues(t, 1, hits.Load(), "fetch must be attempted exactly once")
}

func TestExtractTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	started := time.Now()
	_, err := New(Options{Timeout: time.Millisecond * 100}).Extract(context.Background(), server.URL, columns)
	require.Error(t, err)
	require.Equal(t, etlerr.KindFetch, etlerr.KindOf(err))
	require.Less(t, time.Since(started), time.Second*5)
}

func TestExtractUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(Options{}).Extract(context.Background(), url, columns)
	require.Error(t, err)
	require.Equal(t, etlerr.KindFetch, etlerr.KindOf(err))
}

func TestExtractNonTableDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer server.Close()

	_, err := New(Options{}).Extract(context.Background(), server.URL, columns)
	require.Error(t, err)
	require.Equal(t, etlerr.KindParse, etlerr.KindOf(err))
}

func TestExtractWithHttpDumps(t *testing.T) {
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(previous)

	fixture := readFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture)
	}))
	defer server.Close()

	dir := t.TempDir()
	output, err := restyutil.NewFilesystemOutput(dir)
	require.NoError(t, err)

	table, err := New(Options{Instrument: output}).Extract(context.Background(), server.URL, columns)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	dump, err := os.ReadFile(filepath.Join(dir, "1.http"))
	require.NoError(t, err)
	require.Contains(t, string(dump), "---- RESPONSE ----")
	require.Contains(t, string(dump), "JPMorgan Chase")
}
