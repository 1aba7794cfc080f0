package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quizhub_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: dir}})
	ctx := context.Background()

	url, err := svc.Put(ctx, "reports/q1/report.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/reports/q1/report.csv", url)

	data, err := os.ReadFile(filepath.Join(dir, "reports", "q1", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, svc.Delete(ctx, "reports/q1/report.csv"))
	_, err = os.Stat(filepath.Join(dir, "reports", "q1", "report.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageKeysStayInsideRoot(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: dir}})

	_, err := svc.Put(context.Background(), "../../escape.csv", []byte("x"), "text/csv")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.csv"))
	assert.NoError(t, err, "traversal segments are cleaned into the storage root")
}

func TestStorageFallsBackToLocal(t *testing.T) {
	svc := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "minio", LocalPath: t.TempDir()}})
	_, ok := svc.Provider.(*LocalStorageProvider)
	assert.True(t, ok)
}
