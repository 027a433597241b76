package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockwise/stockwise-backend/internal/forecast/repository"
	"github.com/stockwise/stockwise-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_ListProducts(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewProductRepository(mockDB.Database())

	mockDB.Mock.ExpectQuery(`SELECT id::text AS id, name`).
		WillReturnRows(testutil.MockRows("id", "name", "sku", "category", "stock", "reorder_threshold", "price").
			AddRow("p1", "Gauze", "GZ-1", "Supplies", 5, 10, "2.50").
			AddRow("p2", "Tape", "TP-1", "", 0, 0, "0"))

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 5, products[0].Stock)
	assert.Equal(t, 10, products[0].ReorderThreshold)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("2.50")))
	assert.Equal(t, 0, products[1].Stock)

	mockDB.ExpectationsWereMet(t)
}

func TestProductRepository_ListProducts_Error(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewProductRepository(mockDB.Database())

	mockDB.Mock.ExpectQuery(`FROM products`).WillReturnError(errors.New("relation does not exist"))

	_, err := repo.ListProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
}
