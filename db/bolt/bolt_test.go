package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateBuckets("records"))
	return db
}

func TestPutGetJSON(t *testing.T) {
	db := openTestDB(t)

	in := record{Name: "alpha", Count: 3}
	require.NoError(t, db.PutJSON("records", "a", in))

	var out record
	require.NoError(t, db.GetJSON("records", "a", &out))
	assert.Equal(t, in, out)
}

func TestGetJSONMissingKey(t *testing.T) {
	db := openTestDB(t)

	var out record
	err := db.GetJSON("records", "nope", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestDeleteAndList(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.PutJSON("records", "a", record{Name: "a"}))
	require.NoError(t, db.PutJSON("records", "b", record{Name: "b"}))

	keys, err := db.List("records")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, db.Delete("records", "a"))
	keys, err = db.List("records")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestForEachJSON(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.PutJSON("records", "a", record{Name: "a", Count: 1}))
	require.NoError(t, db.PutJSON("records", "b", record{Name: "b", Count: 2}))

	total := 0
	err := db.ForEachJSON("records",
		func() interface{} { return &record{} },
		func(key string, value interface{}) error {
			total += value.(*record).Count
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestNextSequence(t *testing.T) {
	db := openTestDB(t)

	first, err := db.NextSequence("records")
	require.NoError(t, err)
	second, err := db.NextSequence("records")
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}
