package inventory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

// LockOrder estrategia de adquisición de bloqueos de fila.
type LockOrder string

const (
	// LockOrderInput bloquea en el orden de las líneas del pedido (producto y luego su receta).
	LockOrderInput LockOrder = "input"
	// LockOrderByID bloquea antes de validar: todos los productos ordenados por id y luego todas
	// las materias primas ordenadas por id. Dos pedidos con filas en común nunca se esperan en
	// ciclo, así que no hay deadlock entre conciliaciones.
	LockOrderByID LockOrder = "id"
)

// ParseLockOrder interpreta STOCK_LOCK_ORDER. Vacío = input.
func ParseLockOrder(s string) (LockOrder, error) {
	switch LockOrder(s) {
	case "", LockOrderInput:
		return LockOrderInput, nil
	case LockOrderByID:
		return LockOrderByID, nil
	}
	return "", fmt.Errorf("%w: orden de bloqueo %q", domain.ErrInvalidInput, s)
}

// lockInIDOrder resuelve variantes y recetas (filas de solo lectura) y toma los bloqueos de
// productos y materias primas en orden de id. El pase por línea que sigue vuelve a pedir los
// mismos bloqueos, que ya pertenecen a la transacción.
func lockInIDOrder(ctx context.Context, ledger repository.StockLedger, items []entity.OrderLineItem) error {
	productIDs := make(map[string]struct{})
	materialIDs := make(map[string]struct{})
	for _, item := range items {
		variant, err := ledger.ResolveVariant(ctx, item.VariantID)
		if err != nil {
			return fmt.Errorf("resolver variante %s: %w", item.VariantID, err)
		}
		if variant == nil {
			return domain.VariantNotFound(item.VariantID)
		}
		if _, seen := productIDs[variant.ProductID]; seen {
			continue
		}
		productIDs[variant.ProductID] = struct{}{}
		recipe, err := ledger.ListRecipe(ctx, variant.ProductID)
		if err != nil {
			return fmt.Errorf("receta de producto %s: %w", variant.ProductID, err)
		}
		for _, entry := range recipe {
			materialIDs[entry.RawMaterialID] = struct{}{}
		}
	}

	for _, id := range slices.Sorted(maps.Keys(productIDs)) {
		product, err := ledger.LockProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("bloquear producto %s: %w", id, err)
		}
		if product == nil {
			return domain.ProductNotFound(id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(materialIDs)) {
		material, err := ledger.LockRawMaterial(ctx, id)
		if err != nil {
			return fmt.Errorf("bloquear materia prima %s: %w", id, err)
		}
		if material == nil {
			return domain.RawMaterialNotFound(id)
		}
	}
	return nil
}
