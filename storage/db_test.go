package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBGetMissingKey(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := db.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchWriteIsAppliedTogether(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("stale"), []byte("x")))

	batch := NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("stale"))
	require.Equal(t, 3, batch.Len())

	require.NoError(t, db.Write(batch))

	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
	_, err = db.Get([]byte("stale"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyBatchIsNoop(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	require.NoError(t, db.Write(nil))
	require.NoError(t, db.Write(NewBatch()))
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	db, err := NewLevelDB(path)
	require.NoError(t, err)
	batch := NewBatch()
	batch.Put([]byte("deadline"), []byte{0x01})
	require.NoError(t, db.Write(batch))
	db.Close()

	reopened, err := NewLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()
	value, err := reopened.Get([]byte("deadline"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, value)
}
