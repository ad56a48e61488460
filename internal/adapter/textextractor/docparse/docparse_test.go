package docparse_test

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirewise/resume-matcher/internal/adapter/textextractor/docparse"
)

func buildZip(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_Rejections(t *testing.T) {
	t.Parallel()
	e := docparse.New()

	_, err := e.Extract(context.Background(), "cv.pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")

	_, err = e.Extract(context.Background(), "cv.xls", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")

	_, err = e.Extract(context.Background(), "cv.pdf", []byte("not a pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed document")
}

func TestIsZip(t *testing.T) {
	t.Parallel()
	archive := buildZip(t, "a.pdf")

	assert.True(t, docparse.IsZip("bundle.zip", nil))
	assert.True(t, docparse.IsZip("BUNDLE.ZIP", nil))
	assert.True(t, docparse.IsZip("noext", archive))
	assert.False(t, docparse.IsZip("cv.docx", archive), "docx is a zip container but keeps its extension")
	assert.False(t, docparse.IsZip("noext", []byte("plain text")))
}

func TestListZipEntries_FiltersByExtension(t *testing.T) {
	t.Parallel()
	archive := buildZip(t, "a.pdf", "sub/b.docx", "notes.txt", "nested.zip")

	allowed := func(ext string) bool { return ext == ".pdf" || ext == ".docx" }
	entries, err := docparse.ListZipEntries(archive, allowed)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.pdf", entries[0].Name)
	assert.Equal(t, "b.docx", entries[1].Name, "entry names are flattened to the base name")
	assert.Equal(t, []byte("content of sub/b.docx"), entries[1].Data)
}

func TestListZipEntries_Malformed(t *testing.T) {
	t.Parallel()
	_, err := docparse.ListZipEntries([]byte("not an archive"), func(string) bool { return true })
	require.Error(t, err)
}
