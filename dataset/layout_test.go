package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMortgageDataset lays out a minimal valid dataset and returns its
// root and the files written, keyed by relative path.
func writeMortgageDataset(t *testing.T) (string, map[string][]byte) {
	t.Helper()

	files := map[string][]byte{
		"acq/Acquisition_2000Q1.txt":  []byte("100|01/2000|360\n101|02/2000|360\n"),
		"acq/Acquisition_2000Q2.txt":  []byte("102|04/2000|240\n"),
		"perf/Performance_2000Q1.txt": []byte("100|01/2000|C|0\n"),
		"names.csv":                   []byte("SELLER NAME,NEW\nBANK OF AMERICA,Bank of America\n"),
	}

	root := t.TempDir()
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return root, files
}

func TestInspect(t *testing.T) {
	root, files := writeMortgageDataset(t)

	layout, err := Inspect(root)
	require.NoError(t, err)

	assert.Equal(t, root, layout.Root)
	assert.Equal(t, 2, layout.AcqFiles)
	assert.Equal(t, 1, layout.PerfFiles)
	assert.Len(t, layout.Files, len(files))

	var total int64
	for _, data := range files {
		total += int64(len(data))
	}
	assert.Equal(t, total, layout.TotalBytes)

	// The manifest is sorted by path.
	want := []string{
		"acq/Acquisition_2000Q1.txt",
		"acq/Acquisition_2000Q2.txt",
		"names.csv",
		"perf/Performance_2000Q1.txt",
	}
	for i, f := range layout.Files {
		assert.Equal(t, want[i], f.Path)
		assert.Equal(t, int64(len(files[f.Path])), f.Size)
	}
}

func TestInspectRejectsIncompleteLayouts(t *testing.T) {
	tests := []struct {
		name    string
		remove  string
		wantErr string
	}{
		{"no acquisition files", "acq", "acq/ is missing or empty; expected acquisition files"},
		{"no performance files", "perf", "perf/ is missing or empty; expected performance files"},
		{"no lender mapping", "names.csv", "names.csv not found; expected the lender name mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, _ := writeMortgageDataset(t)
			require.NoError(t, os.RemoveAll(filepath.Join(root, tt.remove)))

			_, err := Inspect(root)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestInspectMissingDir(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "no-such-dir"))
	require.Error(t, err)
}

func TestListDirSkipsEmpty(t *testing.T) {
	_, err := ListDir(t.TempDir())
	assert.ErrorContains(t, err, "contains no files")
}
