package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

// Reconciler valida y ajusta el stock de producto terminado y, por receta, el de materias primas
// para las líneas de un pedido. Toda la operación corre sobre el StockLedger de una transacción
// que abre el caller: si Reconcile devuelve error el caller debe hacer Rollback.
type Reconciler struct {
	lockOrder LockOrder
}

// NewReconciler construye el conciliador. lockOrder vacío equivale a LockOrderInput.
func NewReconciler(lockOrder LockOrder) *Reconciler {
	if lockOrder == "" {
		lockOrder = LockOrderInput
	}
	return &Reconciler{lockOrder: lockOrder}
}

// LockOrder devuelve la estrategia de bloqueo configurada.
func (r *Reconciler) LockOrder() LockOrder { return r.lockOrder }

// Reconcile procesa las líneas en orden. factor +1 descuenta (venta), -1 repone (anulación).
// Con validateOnly se hacen todas las lecturas, bloqueos y validaciones pero ninguna escritura.
// Se detiene en el primer error; los errores de negocio son *domain.StockError.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	ledger repository.StockLedger,
	items []entity.OrderLineItem,
	factor entity.Factor,
	validateOnly bool,
) error {
	if err := validateItems(items, factor); err != nil {
		return err
	}
	if r.lockOrder == LockOrderByID {
		if err := lockInIDOrder(ctx, ledger, items); err != nil {
			return err
		}
	}
	pass := &stockPass{
		ledger:       ledger,
		factor:       factor,
		validateOnly: validateOnly,
		products:     make(map[string]int64),
		materials:    make(map[string]decimal.Decimal),
	}
	for _, item := range items {
		if err := pass.apply(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func validateItems(items []entity.OrderLineItem, factor entity.Factor) error {
	if len(items) == 0 || !factor.Valid() {
		return domain.ErrInvalidInput
	}
	for _, item := range items {
		if item.VariantID == "" || item.Quantity <= 0 {
			return domain.ErrInvalidInput
		}
	}
	return nil
}

// stockPass estado de una llamada a Reconcile.
// products/materials acumulan lo que se habría descontado en modo validateOnly, para que una
// variante repetida en el pedido se valide contra el saldo que dejaría la escritura real.
type stockPass struct {
	ledger       repository.StockLedger
	factor       entity.Factor
	validateOnly bool
	products     map[string]int64
	materials    map[string]decimal.Decimal
}

func (p *stockPass) apply(ctx context.Context, item entity.OrderLineItem) error {
	variant, err := p.ledger.ResolveVariant(ctx, item.VariantID)
	if err != nil {
		return fmt.Errorf("resolver variante %s: %w", item.VariantID, err)
	}
	if variant == nil {
		return domain.VariantNotFound(item.VariantID)
	}

	product, err := p.ledger.LockProduct(ctx, variant.ProductID)
	if err != nil {
		return fmt.Errorf("bloquear producto %s: %w", variant.ProductID, err)
	}
	if product == nil {
		return domain.ProductNotFound(variant.ProductID)
	}
	if p.factor.Consumes() {
		available := product.Stock - p.products[product.ID]
		if available < item.Quantity {
			return domain.InsufficientProductStock(product.ID, product.Name, item.Quantity, available)
		}
	}
	if err := p.adjustProduct(ctx, product.ID, item.Quantity); err != nil {
		return err
	}

	recipe, err := p.ledger.ListRecipe(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("receta de producto %s: %w", product.ID, err)
	}
	for _, entry := range recipe {
		if err := p.applyRecipeEntry(ctx, entry, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (p *stockPass) applyRecipeEntry(ctx context.Context, entry entity.RecipeEntry, quantity int64) error {
	material, err := p.ledger.LockRawMaterial(ctx, entry.RawMaterialID)
	if err != nil {
		return fmt.Errorf("bloquear materia prima %s: %w", entry.RawMaterialID, err)
	}
	if material == nil {
		return domain.RawMaterialNotFound(entry.RawMaterialID)
	}
	required := entry.Required(quantity)
	if p.factor.Consumes() {
		available := material.StockQuantity.Sub(p.materials[material.ID])
		if available.LessThan(required) {
			return domain.InsufficientMaterialStock(material.ID, material.Name, material.Unit, required, available)
		}
	}
	return p.adjustMaterial(ctx, material.ID, required)
}

// adjustProduct aplica stock -= quantity * factor.
func (p *stockPass) adjustProduct(ctx context.Context, productID string, quantity int64) error {
	consumed := quantity * int64(p.factor)
	if p.validateOnly {
		p.products[productID] += consumed
		return nil
	}
	if err := p.ledger.AdjustProductStock(ctx, productID, -consumed); err != nil {
		return fmt.Errorf("ajustar stock de producto %s: %w", productID, err)
	}
	return nil
}

// adjustMaterial aplica stock_quantity -= required * factor.
func (p *stockPass) adjustMaterial(ctx context.Context, rawMaterialID string, required decimal.Decimal) error {
	consumed := required.Mul(decimal.NewFromInt(int64(p.factor)))
	if p.validateOnly {
		p.materials[rawMaterialID] = p.materials[rawMaterialID].Add(consumed)
		return nil
	}
	if err := p.ledger.AdjustRawMaterialStock(ctx, rawMaterialID, consumed.Neg()); err != nil {
		return fmt.Errorf("ajustar stock de materia prima %s: %w", rawMaterialID, err)
	}
	return nil
}
