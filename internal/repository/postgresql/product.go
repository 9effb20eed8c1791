package postgresql

import (
	"context"

	"github.com/the-vibe-thread/admin-orders/internal/db"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

type ProductRepo struct {
	db db.DB
}

func NewProductRepo(db db.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// GetVariants returns every color/size variant of a product, one row each.
// An empty result means the product does not exist.
func (r *ProductRepo) GetVariants(ctx context.Context, slug string) ([]*repository.ProductVariant, error) {
	var variants []*repository.ProductVariant
	err := r.db.Select(ctx, &variants, `
        SELECT slug, name, color, size, quantity, sku
        FROM product_variants
        WHERE slug = $1
        ORDER BY color, size
    `, slug)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, repository.ErrObjectNotFound
	}
	return variants, nil
}
