package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type order struct {
	ID    string  `json:"id"`
	Total float64 `json:"total"`
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyToken, "abc"))
	require.NoError(t, s.Set(KeyOrders, []order{{ID: "o-1", Total: 12.5}}))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", reopened.GetString(KeyToken))

	var orders []order
	ok, err := reopened.Get(KeyOrders, &orders)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []order{{ID: "o-1", Total: 12.5}}, orders)
}

func TestRemove(t *testing.T) {
	s := Memory()
	require.NoError(t, s.Set(KeyToken, "abc"))
	require.NoError(t, s.Set(KeyUser, map[string]string{"id": "u1"}))
	require.NoError(t, s.Remove(KeyToken, KeyUser))

	assert.Equal(t, "", s.GetString(KeyToken))
	var u map[string]string
	ok, _ := s.Get(KeyUser, &u)
	assert.False(t, ok)
}

func TestUpdateAppends(t *testing.T) {
	s := Memory()
	for _, id := range []string{"a", "b"} {
		_, err := Update(s, KeyOrders, func(cur []order) ([]order, error) {
			return append(cur, order{ID: id}), nil
		})
		require.NoError(t, err)
	}

	var orders []order
	_, err := s.Get(KeyOrders, &orders)
	require.NoError(t, err)
	assert.Equal(t, []order{{ID: "a"}, {ID: "b"}}, orders)
}

func TestFailedWriteLeavesValuesUnchanged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyToken, "t1"))
	require.NoError(t, s.Set(KeyOrders, []order{{ID: "a", Total: 5}}))

	// a plain file where the directory was makes every write fail
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o600))

	assert.Error(t, s.Set(KeyToken, "t2"))
	assert.Equal(t, "t1", s.GetString(KeyToken))

	_, err = Update(s, KeyOrders, func(cur []order) ([]order, error) {
		return append(cur, order{ID: "b"}), nil
	})
	assert.Error(t, err)
	var orders []order
	_, err = s.Get(KeyOrders, &orders)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	assert.Error(t, s.Remove(KeyToken))
	assert.Equal(t, "t1", s.GetString(KeyToken))
}
