package files

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxview/internal/model"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func newGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root, Options{})
	require.NoError(t, err)
	return g, root
}

func TestListDirectorySortedAndHidesDotfiles(t *testing.T) {
	g, root := newGateway(t)
	writeFile(t, root, "b.txt", []byte("hello"))
	writeFile(t, root, "a.go", []byte("package a"))
	writeFile(t, root, ".secret", []byte("x"))
	writeFile(t, root, "sub/inner.md", []byte("# hi"))

	entries, err := g.ListDirectory("")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.go", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.Equal(t, int64(5), entries[1].Size)
	assert.Equal(t, model.DirEntry{Name: "sub", Path: "sub", IsDir: true, Size: 0}, entries[2])

	nested, err := g.ListDirectory("/sub")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "sub/inner.md", nested[0].Path)
}

func TestListDirectoryErrors(t *testing.T) {
	g, root := newGateway(t)
	writeFile(t, root, "file.txt", []byte("x"))

	_, err := g.ListDirectory("file.txt")
	assert.ErrorIs(t, err, model.ErrNotADirectory)

	_, err = g.ListDirectory("missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTraversalIsDenied(t *testing.T) {
	g, _ := newGateway(t)
	for _, p := range []string{"../../etc/passwd", "..", "sub/../../x", "/../etc"} {
		_, err := g.ReadFile(p)
		assert.ErrorIs(t, err, model.ErrAccessDenied, "path %q", p)
		_, err = g.ListDirectory(p)
		assert.ErrorIs(t, err, model.ErrAccessDenied, "path %q", p)
	}
}

func TestSymlinkEscapeIsDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	g, root := newGateway(t)
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", []byte("top secret"))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))

	_, err := g.ReadFile("link.txt")
	assert.ErrorIs(t, err, model.ErrAccessDenied)
	_, err = g.ListDirectory("linkdir")
	assert.ErrorIs(t, err, model.ErrAccessDenied)
}

func TestSymlinkInsideRootIsAllowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	g, root := newGateway(t)
	writeFile(t, root, "real.txt", []byte("ok"))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")))

	fc, err := g.ReadFile("alias.txt")
	require.NoError(t, err)
	assert.Equal(t, "ok", fc.Content)
}

func TestReadFileText(t *testing.T) {
	g, root := newGateway(t)
	writeFile(t, root, "docs/readme.md", []byte("# Title\nbody\n"))

	fc, err := g.ReadFile("docs/readme.md")
	require.NoError(t, err)
	assert.True(t, fc.IsText)
	assert.Equal(t, "# Title\nbody\n", fc.Content)
	assert.Equal(t, "md", fc.DocType)
	assert.Equal(t, "docs/readme.md", fc.Path)
	assert.NotEmpty(t, fc.MimeType)
}

func TestReadFileBinary(t *testing.T) {
	g, root := newGateway(t)
	writeFile(t, root, "blob.bin", []byte{0x01, 0x00, 0x02})

	fc, err := g.ReadFile("blob.bin")
	require.NoError(t, err)
	assert.False(t, fc.IsText)
	assert.Empty(t, fc.Content)
	assert.Equal(t, int64(3), fc.Size)
	assert.Equal(t, "application/octet-stream", fc.MimeType)
}

func TestReadFileInvalidUTF8IsReplaced(t *testing.T) {
	g, root := newGateway(t)
	writeFile(t, root, "latin1.txt", []byte{'c', 'a', 'f', 0xe9})

	fc, err := g.ReadFile("latin1.txt")
	require.NoError(t, err)
	assert.True(t, fc.IsText)
	assert.Equal(t, "caf\uFFFD", fc.Content)
}

func TestReadFileOnDirectory(t *testing.T) {
	g, root := newGateway(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))
	_, err := g.ReadFile("dir")
	assert.ErrorIs(t, err, model.ErrNotAFile)
	_, err = g.ReadFile("nope.txt")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNewRejectsFileRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f", []byte("x"))
	_, err := New(filepath.Join(root, "f"), Options{})
	assert.ErrorIs(t, err, model.ErrNotADirectory)
}

func TestClassifyDocType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "main.go", want: "code"},
		{path: "README.md", want: "md"},
		{path: "paper.tex", want: "tex"},
		{path: "notes.txt", want: "text"},
		{path: "dataset.csv", want: "data"},
		{path: "index.html", want: "html"},
		{path: "manual.pdf", want: "pdf"},
		{path: "image.png", want: "image"},
		{path: "bundle.zip", want: "archive"},
		{path: "blob.bin", want: "binary_ignored"},
		{path: "Dockerfile", want: "code"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyDocType(tc.path))
		})
	}
}
