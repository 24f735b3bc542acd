package csvwriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriter_WritesHeaderAndRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	w, err := NewWriter(path, []string{"From", "To", "Probability"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"A", "B", "0.6667"}))
	require.NoError(t, w.Write([]string{"A", "C", "0.3333"}))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should not be visible before Close")

	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "From,To,Probability\nA,B,0.6667\nA,C,0.3333\n", string(data))
}

func TestWriter_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	w, err := NewWriter(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"x"}))
	w.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
