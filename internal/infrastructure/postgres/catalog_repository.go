package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var _ repository.CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo implementación del puerto CatalogRepository sobre PostgreSQL (usable con pool o tx).
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador del catálogo. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

// UpsertProduct inserta el producto; si existe solo actualiza el nombre (el stock no se toca).
func (r *CatalogRepo) UpsertProduct(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (id, name, stock)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, product.ID, product.Name, product.Stock); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertVariant inserta o reasigna la variante a su producto.
func (r *CatalogRepo) UpsertVariant(ctx context.Context, variant *entity.ProductVariant) error {
	query := `
		INSERT INTO product_variants (id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET product_id = EXCLUDED.product_id`
	if _, err := r.q.Exec(ctx, query, variant.ID, variant.ProductID); err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}

// UpsertRawMaterial inserta la materia prima; si existe actualiza nombre y unidad (no el stock).
func (r *CatalogRepo) UpsertRawMaterial(ctx context.Context, material *entity.RawMaterial) error {
	query := `
		INSERT INTO raw_materials (id, name, stock_quantity, unit)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit = EXCLUDED.unit, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, material.ID, material.Name, material.StockQuantity, material.Unit); err != nil {
		return fmt.Errorf("upsert raw material: %w", err)
	}
	return nil
}

// ReplaceRecipe borra las líneas actuales del producto e inserta las nuevas.
func (r *CatalogRepo) ReplaceRecipe(ctx context.Context, productID string, entries []entity.RecipeEntry) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM recipes WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	for _, e := range entries {
		_, err := r.q.Exec(ctx,
			`INSERT INTO recipes (product_id, raw_material_id, quantity_used) VALUES ($1, $2, $3)`,
			productID, e.RawMaterialID, e.QuantityUsed,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: receta de %s repite %s", domain.ErrDuplicate, productID, e.RawMaterialID)
			}
			return fmt.Errorf("insert recipe: %w", err)
		}
	}
	return nil
}
