package store

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newMockStore(t *testing.T) (*PostgresStore[payload], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS entries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewPostgresStore[payload](db, "entries", zap.NewNop())
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_Put(t *testing.T) {
	s, mock := newMockStore(t)

	data, err := json.Marshal(payload{Name: "a", Count: 1})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO entries").
		WithArgs("k1", data, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Put("k1", payload{Name: "a", Count: 1}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockStore(t)

	t.Run("found", func(t *testing.T) {
		data, err := json.Marshal(payload{Name: "a", Count: 1})
		require.NoError(t, err)

		mock.ExpectQuery("SELECT data FROM entries").
			WithArgs("k1").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

		v, ok, err := s.Get("k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a", v.Name)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT data FROM entries").
			WithArgs("k2").
			WillReturnRows(sqlmock.NewRows([]string{"data"}))

		_, ok, err := s.Get("k2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockStore(t)

	a, _ := json.Marshal(payload{Name: "a"})
	b, _ := json.Marshal(payload{Name: "b"})
	mock.ExpectQuery("SELECT data FROM entries").
		WithArgs("org1:").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(a).AddRow(b))

	values, err := s.List("org1:")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "a", values[0].Name)
	assert.Equal(t, "b", values[1].Name)
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newMockStore(t)

	t.Run("existing", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM entries").
			WithArgs("k1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := s.Delete("k1")
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM entries").
			WithArgs("k2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		deleted, err := s.Delete("k2")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestPostgresStore_Exists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT 1 FROM entries").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := s.Exists("k1")
	require.NoError(t, err)
	assert.True(t, exists)
}
