package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, rel string, size int) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o600))
	return p
}

func TestCollectWalksDirectories(t *testing.T) {
	root := t.TempDir()
	a := touch(t, root, "a.pdf", 10)
	b := touch(t, root, "sub/B.PDF", 10)
	touch(t, root, "notes.txt", 10)
	touch(t, root, "node_modules/dep.pdf", 10)
	touch(t, root, "big.pdf", 200)
	touch(t, root, "drafts/old.pdf", 10)
	touch(t, root, "ignored.pdf", 10)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("ignored.pdf\ndrafts/\n"), 0o600))

	got, err := NewFilter(WithMaxFileSize(100)).Collect([]string{root, a})
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, got)
}

func TestCollectWithoutGitIgnore(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.pdf", 1)
	touch(t, root, "ignored.pdf", 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("ignored.pdf\n"), 0o600))

	got, err := NewFilter(WithDisableGitIgnore(true)).Collect([]string{root})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "a.pdf"), filepath.Join(root, "ignored.pdf")}, got)
}

func TestCollectExplicitFiles(t *testing.T) {
	root := t.TempDir()
	txt := touch(t, root, "notes.txt", 1)

	_, err := NewFilter().Collect([]string{txt})
	require.True(t, errors.Is(err, ErrNotPDF))

	_, err = NewFilter().Collect([]string{filepath.Join(root, "missing.pdf")})
	require.Error(t, err)

	got, err := NewFilter(WithExcludeDirs([]string{"skip"})).Collect([]string{filepath.Join(root)})
	require.NoError(t, err)
	require.Empty(t, got)
}
