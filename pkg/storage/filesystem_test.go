package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutOverwritesAndReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	obj := Object{Bucket: "publications-pdfs", Key: "pdfs/paper-1.pdf", Body: strings.NewReader("first")}
	url, err := store.Put(context.Background(), obj)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/files/publications-pdfs/pdfs/paper-1.pdf", url)

	obj.Body = strings.NewReader("second")
	_, err = store.Put(context.Background(), obj)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "publications-pdfs", "pdfs", "paper-1.pdf"))
	require.NoError(t, err)
	require.Equal(t, "second", string(content))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), Object{Bucket: "publications-pdfs", Key: "../../etc/passwd", Body: strings.NewReader("x")})
	require.Error(t, err)

	_, err = store.Put(context.Background(), Object{Bucket: "", Key: "a.pdf", Body: strings.NewReader("x")})
	require.Error(t, err)
}

func TestLocalStoragePublicURLEscapesSegments(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)
	require.Equal(t, "/files/publications-images/images/a%20b.png", store.PublicURL("publications-images", "images/a b.png"))
}
