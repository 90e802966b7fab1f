package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apibench/internal/report"
)

func TestSessionStore_Roundtrip(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	rec := RunRecord{
		ID:        "0f2e8a1c",
		Timestamp: time.Now().UTC(),
		Report: &report.Report{
			Meta: report.Meta{RunID: "0f2e8a1c", Requests: 100, Status: "COMPLETED"},
		},
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Get("0f2e8a1c")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 100, got.Report.Meta.Requests)
	assert.Equal(t, "COMPLETED", got.Report.Meta.Status)

	items := store.List()
	require.Len(t, items, 1)
	assert.Equal(t, rec.ID, items[0].ID)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSessionStore_CloseRemovesFile(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	path := store.Path()
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
