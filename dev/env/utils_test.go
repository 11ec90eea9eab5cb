package devenv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPassthrough(t *testing.T) {
	path, err := ResolvePath("output/Largest_banks_data.csv")
	require.NoError(t, err)
	require.Equal(t, "output/Largest_banks_data.csv", path)
}

func TestResolvePathDevState(t *testing.T) {
	root, err := GetWorkspaceRoot()
	require.NoError(t, err)

	path, err := ResolvePath("<dev_state>/Banks.db")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state", "Banks.db"), path)
}
