package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gitlab.ozon.dev/qwestard/storefront/internal/apperr"
	"gitlab.ozon.dev/qwestard/storefront/internal/models"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p := &models.Product{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
