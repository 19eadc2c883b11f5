package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceArchive_SaveAndOverwrite(t *testing.T) {
	root := t.TempDir()
	archive, err := NewInvoiceArchive(root, 1)
	require.NoError(t, err)

	path, n, err := archive.Save(context.Background(), "JD-000001", strings.NewReader("%PDF-first"))
	require.NoError(t, err)
	assert.Equal(t, "JD-000001.pdf", path)
	assert.EqualValues(t, len("%PDF-first"), n)

	_, err = archive.SaveBytes(context.Background(), "JD-000001", []byte("%PDF-second"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, path))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-second", string(data))

	_, err = os.Stat(filepath.Join(root, path+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestInvoiceArchive_SizeLimit(t *testing.T) {
	root := t.TempDir()
	archive, err := NewInvoiceArchive(root, 1)
	require.NoError(t, err)

	big := strings.NewReader(strings.Repeat("x", 1024*1024+1))
	_, _, err = archive.Save(context.Background(), "JD-000002", big)
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvoiceArchive_Delete(t *testing.T) {
	root := t.TempDir()
	archive, err := NewInvoiceArchive(root, 1)
	require.NoError(t, err)

	_, err = archive.SaveBytes(context.Background(), "JD-000003", []byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, archive.Delete(context.Background(), "JD-000003"))
	require.NoError(t, archive.Delete(context.Background(), "JD-000003"))
}

func TestInvoiceArchive_CancelledContext(t *testing.T) {
	archive, err := NewInvoiceArchive(t.TempDir(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = archive.Save(ctx, "JD-000004", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"JD-000001":      "JD-000001",
		"../../etc/pass": "__etc_pass",
		"a\\b":           "a_b",
		"":               "invoice",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
