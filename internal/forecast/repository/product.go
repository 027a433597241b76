package repository

import (
	"context"
	"fmt"

	"github.com/stockwise/stockwise-backend/internal/forecast/domain"
	"github.com/stockwise/stockwise-backend/pkg/database"
)

// ProductRepository reads products from the CRUD database
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListProducts returns all products. Null or negative counts read as 0.
func (r *ProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id::text AS id, name, COALESCE(sku, '') AS sku, COALESCE(category, '') AS category,
			GREATEST(COALESCE(stock, 0), 0) AS stock,
			GREATEST(COALESCE(reorder_threshold, 0), 0) AS reorder_threshold,
			COALESCE(price, 0) AS price
		FROM products
		ORDER BY id
	`

	products := []domain.Product{}
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
