package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	ldb, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ldb.Close() })
	return map[string]Database{
		"memdb":   NewMemDB(),
		"leveldb": ldb,
	}
}

func TestDatabaseGetMissing(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBatchAppliesAllWrites(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("stale"), []byte("x")))

			batch := db.NewBatch()
			batch.Put([]byte("a/1"), []byte("one"))
			batch.Put([]byte("a/2"), []byte("two"))
			batch.Delete([]byte("stale"))
			require.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("a/1"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, batch.Write())

			got, err := db.Get([]byte("a/2"))
			require.NoError(t, err)
			require.Equal(t, []byte("two"), got)
			_, err = db.Get([]byte("stale"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestForEachPrefixOrdered(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("p/b"), []byte("2")))
			require.NoError(t, db.Put([]byte("p/a"), []byte("1")))
			require.NoError(t, db.Put([]byte("q/a"), []byte("3")))

			var keys []string
			err := db.ForEachPrefix([]byte("p/"), func(key, _ []byte) error {
				keys = append(keys, string(key))
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, []string{"p/a", "p/b"}, keys)
		})
	}
}
