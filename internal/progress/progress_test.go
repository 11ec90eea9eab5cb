package progress

import (
	"bankcap/lib/testutil"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "code_log.txt")
	clock := time.Date(2024, time.March, 7, 14, 5, 9, 0, time.UTC)
	sink := &FileSink{
		Path: path,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}

	sink.Record(context.Background(), "Data extraction started")
	sink.Record(context.Background(), "Data extraction finished")

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(
		t,
		"2024-Mar-07-14:05:10 : Data extraction started\n"+
			"2024-Mar-07-14:05:11 : Data extraction finished\n",
		string(contents),
	)

	NewFileSink(path).Record(context.Background(), "again")
	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), " : again\n")
}

func TestFileSinkUnwritableDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	NewFileSink(filepath.Join(blocker, "code_log.txt")).Record(context.Background(), "ignored")
}

func TestMulti(t *testing.T) {
	a := &testutil.RecordingSink{}
	b := &testutil.RecordingSink{}

	sink := Multi(a, nil, b, Nop)
	sink.Record(context.Background(), "one")
	sink.Record(context.Background(), "two")

	require.Equal(t, []string{"one", "two"}, a.Messages())
	require.Equal(t, []string{"one", "two"}, b.Messages())
}
