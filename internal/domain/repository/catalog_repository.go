package repository

import (
	"context"

	"github.com/jhoicas/pos-stock/internal/domain/entity"
)

// CatalogRepository define el puerto de escritura del catálogo (productos, variantes, materias primas y recetas).
// El stock solo se fija al insertar; sobre filas existentes se actualizan los datos descriptivos
// y el stock se mueve únicamente por ventas, anulaciones o recepciones.
type CatalogRepository interface {
	UpsertProduct(ctx context.Context, product *entity.Product) error
	UpsertVariant(ctx context.Context, variant *entity.ProductVariant) error
	UpsertRawMaterial(ctx context.Context, material *entity.RawMaterial) error
	// ReplaceRecipe reemplaza todas las líneas de receta del producto (lista vacía = producto no manufacturado).
	ReplaceRecipe(ctx context.Context, productID string, entries []entity.RecipeEntry) error
}
