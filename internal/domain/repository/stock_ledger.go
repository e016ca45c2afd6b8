package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/domain/entity"
)

// StockLedger define el puerto de stock atado a una transacción abierta por el caller.
// Los métodos Lock* bloquean la fila (SELECT ... FOR UPDATE) hasta que la transacción termina;
// volver a bloquear una fila ya tomada por la misma transacción no bloquea.
// Los Get/Lock devuelven (nil, nil) si la fila no existe.
type StockLedger interface {
	ResolveVariant(ctx context.Context, variantID string) (*entity.ProductVariant, error)
	LockProduct(ctx context.Context, productID string) (*entity.Product, error)
	// AdjustProductStock suma delta (negativo = descuento) al stock del producto.
	AdjustProductStock(ctx context.Context, productID string, delta int64) error
	ListRecipe(ctx context.Context, productID string) ([]entity.RecipeEntry, error)
	LockRawMaterial(ctx context.Context, rawMaterialID string) (*entity.RawMaterial, error)
	// AdjustRawMaterialStock suma delta (negativo = descuento) a stock_quantity.
	AdjustRawMaterialStock(ctx context.Context, rawMaterialID string, delta decimal.Decimal) error
}
