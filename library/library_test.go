package library

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func filenames(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Filename
	}
	return out
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.pdf", "b")
	writeFile(t, root, "a.PDF", "a")
	writeFile(t, root, "notes.txt", "n")
	writeFile(t, root, "sub/deep/c.pdf", "c")
	writeFile(t, root, ".hidden.pdf", "h")
	writeFile(t, root, ".git/d.pdf", "d")

	entries, err := Scan(root, []string{"pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PDF", "b.pdf", "sub/deep/c.pdf"}, filenames(entries))

	for _, e := range entries {
		assert.True(t, filepath.IsAbs(e.Path))
		assert.Equal(t, int64(1), e.Size)
		assert.False(t, e.ModTime.IsZero())
	}
}

func TestScan_MultipleExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "a")
	writeFile(t, root, "b.docx", "b")
	writeFile(t, root, "c.png", "c")

	entries, err := Scan(root, []string{".pdf", "DOCX", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.docx"}, filenames(entries))
}

func TestScan_AllFilesWhenNoExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.pdf", "a")
	writeFile(t, root, "b", "b")

	entries, err := Scan(root, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b"}, filenames(entries))
}

func TestScan_EmptyRoot(t *testing.T) {
	entries, err := Scan(t.TempDir(), []string{"pdf"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScan_Unreadable(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, ErrRootUnreadable)

	file := filepath.Join(t.TempDir(), "file.pdf")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = Scan(file, nil)
	assert.ErrorIs(t, err, ErrRootUnreadable)
}

func TestHashFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "same content")
	writeFile(t, root, "b.txt", "same content")
	writeFile(t, root, "c.txt", "different content")

	a, err := HashFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	b, err := HashFile(filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	c, err := HashFile(filepath.Join(root, "c.txt"))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	r, err := HashReader(strings.NewReader("same content"))
	require.NoError(t, err)
	assert.Equal(t, a, r)

	_, err = HashFile(filepath.Join(root, "missing.txt"))
	assert.Error(t, err)
}
