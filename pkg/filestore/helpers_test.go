package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// testTree mirrors a small calculation directory:
//
//	README.md
//	calculation1/input.in
//	calculation1/output.out
//	calculation2/input.in
//	calculation2/output.out
//	calculation2/subdir/file_2_levels_deep.json
var testTree = map[string]string{
	"README.md":                                  "# calculations\n",
	"calculation1/input.in":                      "",
	"calculation1/output.out":                    "energy = -1.0\n",
	"calculation2/input.in":                      "ecut = 40\n",
	"calculation2/output.out":                    "energy = -2.0\n",
	"calculation2/subdir/file_2_levels_deep.json": `{"deep": true}`,
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newTestDir(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeTree(t, root, testTree)
	return root
}

// failingFs fails Open and Remove for a single path.
type failingFs struct {
	afero.Fs
	path string
}

func (f *failingFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == f.path {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func (f *failingFs) Remove(name string) error {
	if filepath.Clean(name) == f.path {
		return os.ErrPermission
	}
	return f.Fs.Remove(name)
}
