package etlerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("loading: %w", Persistence(io.ErrShortWrite, "write %s", "out.csv"))

	require.Equal(t, KindPersistence, KindOf(err))
	require.True(t, IsKind(err, KindPersistence))
	require.True(t, errors.Is(err, io.ErrShortWrite))
	require.Equal(t, KindUnknown, KindOf(io.EOF))
	require.False(t, IsKind(nil, KindUnknown))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(
		t,
		"fetch error (status 503): unexpected response from http://example.com",
		FetchStatus(503, "http://example.com").Error(),
	)
	require.Equal(
		t,
		`conversion error: row 2 ("Bank B"): magnitude "n/a" is not a number: boom`,
		Conversion(errors.New("boom"), "row %d (%q): magnitude %q is not a number", 2, "Bank B", "n/a").Error(),
	)
}
