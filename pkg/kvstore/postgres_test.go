package kvstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stockwise/stockwise-backend/pkg/kvstore"
	"github.com/stockwise/stockwise-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Get(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	store := kvstore.NewPostgresStore(mockDB.Database())
	ctx := context.Background()

	t.Run("returns stored value", func(t *testing.T) {
		mockDB.ExpectQuery("SELECT value FROM kv_store WHERE key = $1").
			WithArgs("notifications").
			WillReturnRows(testutil.MockRows("value").AddRow([]byte(`[]`)))

		value, err := store.Get(ctx, "notifications")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), value)
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		mockDB.ExpectQuery("SELECT value FROM kv_store WHERE key = $1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		mockDB.ExpectQuery("SELECT value FROM kv_store WHERE key = $1").
			WithArgs("notifications").
			WillReturnError(errors.New("connection reset"))

		_, err := store.Get(ctx, "notifications")
		require.Error(t, err)
		assert.NotErrorIs(t, err, kvstore.ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})

	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_SetDelete(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	store := kvstore.NewPostgresStore(mockDB.Database())
	ctx := context.Background()

	mockDB.Mock.ExpectExec(`INSERT INTO kv_store`).
		WithArgs("notifications", `[{"id":"a"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Set(ctx, "notifications", []byte(`[{"id":"a"}]`)))

	mockDB.ExpectExec("DELETE FROM kv_store WHERE key = $1").
		WithArgs("notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, "notifications"))

	mockDB.ExpectationsWereMet(t)
}

func TestPostgresStore_Integration(t *testing.T) {
	testutil.SkipIfShort(t)

	suite := testutil.RequireIntegrationSuite(t, kvstore.Schema)
	suite.Truncate(t, "kv_store")

	store := kvstore.NewPostgresStore(suite.DB)
	ctx := testutil.DefaultTestContext(t)

	_, err := store.Get(ctx, "notifications")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, "notifications", []byte(`[{"id":"product-1"}]`)))
	require.NoError(t, store.Set(ctx, "notifications", []byte(`[{"id":"product-2"}]`)))

	value, err := store.Get(ctx, "notifications")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"product-2"}]`, string(value))

	require.NoError(t, store.Delete(ctx, "notifications"))
	_, err = store.Get(ctx, "notifications")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}
