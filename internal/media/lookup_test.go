package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/naperu/wabarelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFileOrder(t *testing.T) {
	root := t.TempDir()
	roots := RetrievalRoots(root)
	for _, r := range roots {
		require.NoError(t, os.MkdirAll(r, 0o755))
	}

	write := func(dir, name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write(roots[3], "a.mp4", "video")
	write(roots[2], "a.mp4", "image dir")
	write(roots[0], "b.pdf", "permanent")
	write(roots[1], "b.pdf", "temp")

	p, err := FindFile(roots, "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(roots[2], "a.mp4"), p)

	p, err = FindFile(roots, "b.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(roots[0], "b.pdf"), p)

	_, err = FindFile(roots, "missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindFileRejectsTraversal(t *testing.T) {
	roots := RetrievalRoots(t.TempDir())
	for _, name := range []string{"", "..", "../etc/passwd", `a\b`} {
		_, err := FindFile(roots, name)
		assert.ErrorIs(t, err, domain.ErrBadInput, name)
	}
}

func TestFindFileSkipsDirectories(t *testing.T) {
	root := t.TempDir()
	roots := []string{filepath.Join(root, "one"), filepath.Join(root, "two")}
	require.NoError(t, os.MkdirAll(filepath.Join(roots[0], "x"), 0o755))
	require.NoError(t, os.MkdirAll(roots[1], 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(roots[1], "x"), []byte("file"), 0o644))

	p, err := FindFile(roots, "x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(roots[1], "x"), p)
}

func TestCategory(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", domain.CategoryImages},
		{"video/mp4", domain.CategoryVideos},
		{"audio/mpeg", domain.CategoryDocuments},
		{"application/pdf", domain.CategoryDocuments},
		{"", domain.CategoryDocuments},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Category(tt.mime), tt.mime)
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("Photo.PNG", "image/png"))
	assert.Equal(t, ".pdf", Extension("", "application/pdf"))
	assert.Equal(t, ".bin", Extension("", "application/x-unknown-thing"))
	assert.Equal(t, ".pdf", Extension("invoice.dat", "application/pdf"))
	assert.Equal(t, ".xyz", Extension("blob.XYZ", "application/octet-stream"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentType("x.mp4"))
	assert.Equal(t, "audio/ogg", ContentType("x.ogg"))
	assert.Equal(t, "application/octet-stream", ContentType("x"))
}
