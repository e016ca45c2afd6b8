package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var _ repository.StockLedger = (*StockLedger)(nil)

// StockLedger implementación de repository.StockLedger sobre PostgreSQL.
// Debe construirse con un pgx.Tx: los FOR UPDATE solo tienen sentido dentro de una transacción.
type StockLedger struct {
	q Querier
}

// NewStockLedger construye el adaptador de stock atado a la transacción.
func NewStockLedger(q Querier) *StockLedger {
	return &StockLedger{q: q}
}

// ResolveVariant obtiene la variante (sin bloqueo).
func (r *StockLedger) ResolveVariant(ctx context.Context, variantID string) (*entity.ProductVariant, error) {
	var v entity.ProductVariant
	err := r.q.QueryRow(ctx,
		`SELECT id, product_id FROM product_variants WHERE id = $1`, variantID,
	).Scan(&v.ID, &v.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

// LockProduct obtiene el producto y bloquea la fila (SELECT FOR UPDATE).
func (r *StockLedger) LockProduct(ctx context.Context, productID string) (*entity.Product, error) {
	var p entity.Product
	err := r.q.QueryRow(ctx,
		`SELECT id, name, stock FROM products WHERE id = $1 FOR UPDATE`, productID,
	).Scan(&p.ID, &p.Name, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return &p, nil
}

// AdjustProductStock suma delta al stock del producto.
func (r *StockLedger) AdjustProductStock(ctx context.Context, productID string, delta int64) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, delta,
	)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecipe lista las líneas de receta del producto, ordenadas por materia prima.
func (r *StockLedger) ListRecipe(ctx context.Context, productID string) ([]entity.RecipeEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT product_id, raw_material_id, quantity_used
		 FROM recipes WHERE product_id = $1 ORDER BY raw_material_id`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recipe: %w", err)
	}
	defer rows.Close()
	var list []entity.RecipeEntry
	for rows.Next() {
		var e entity.RecipeEntry
		if err := rows.Scan(&e.ProductID, &e.RawMaterialID, &e.QuantityUsed); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recipe: %w", err)
	}
	return list, nil
}

// LockRawMaterial obtiene la materia prima y bloquea la fila (SELECT FOR UPDATE).
func (r *StockLedger) LockRawMaterial(ctx context.Context, rawMaterialID string) (*entity.RawMaterial, error) {
	var m entity.RawMaterial
	err := r.q.QueryRow(ctx,
		`SELECT id, name, stock_quantity, unit FROM raw_materials WHERE id = $1 FOR UPDATE`, rawMaterialID,
	).Scan(&m.ID, &m.Name, &m.StockQuantity, &m.Unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock raw material: %w", err)
	}
	return &m, nil
}

// AdjustRawMaterialStock suma delta a stock_quantity.
func (r *StockLedger) AdjustRawMaterialStock(ctx context.Context, rawMaterialID string, delta decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE raw_materials SET stock_quantity = stock_quantity + $2, updated_at = now() WHERE id = $1`,
		rawMaterialID, delta,
	)
	if err != nil {
		return fmt.Errorf("update raw material stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
