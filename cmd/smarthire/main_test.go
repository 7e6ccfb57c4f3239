package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/smarthire/internal/store"
)

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	err := writeOutput(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "Name,Email\n")
		return err
	})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Email\n", string(data))
}

func TestWriteOutputReportsCloseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	err := writeOutput(path, func(w io.Writer) error {
		// Closing early makes the deferred close fail.
		return w.(*os.File).Close()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestWriteOutputKeepsWriteError(t *testing.T) {
	boom := errors.New("boom")
	err := writeOutput(filepath.Join(t.TempDir(), "out"), func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWriteOutputCreateError(t *testing.T) {
	err := writeOutput(filepath.Join(t.TempDir(), "missing", "out"), func(io.Writer) error { return nil })
	assert.Error(t, err)
}

func TestRecordBank(t *testing.T) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	require.NoError(t, recordBank(ctx, db, "aaa"))
	got, err := db.GetMetadata(ctx, "bank_sha256")
	require.NoError(t, err)
	assert.Equal(t, "aaa", got)

	require.NoError(t, recordBank(ctx, db, "bbb"))
	got, err = db.GetMetadata(ctx, "bank_sha256")
	require.NoError(t, err)
	assert.Equal(t, "bbb", got)
}
