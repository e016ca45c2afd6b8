// Package catalog carga el catálogo del POS y registra entradas de mercancía.
// El stock de productos y materias primas no se edita aquí: solo se fija al crear la fila
// y luego se mueve por ventas, anulaciones o recepciones.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/application/dto"
	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
	"github.com/jhoicas/pos-stock/pkg/logger"
)

// UseCase casos de uso del catálogo.
type UseCase struct {
	txRunner TxRunner
	log      *logger.Logger
}

// NewUseCase construye el caso de uso.
func NewUseCase(txRunner TxRunner, log *logger.Logger) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UseCase{txRunner: txRunner, log: log.Component("catalog")}
}

// Import valida el archivo completo y lo escribe en una sola transacción.
func (uc *UseCase) Import(ctx context.Context, in dto.CatalogImportRequest) (*dto.CatalogImportResponse, error) {
	if err := validateImport(in); err != nil {
		return nil, err
	}
	var out dto.CatalogImportResponse
	err := uc.txRunner.Run(ctx, func(catalog repository.CatalogRepository, _ repository.StockLedger) error {
		out = dto.CatalogImportResponse{}
		for _, p := range in.Products {
			if err := catalog.UpsertProduct(ctx, &entity.Product{ID: p.ID, Name: p.Name, Stock: p.Stock}); err != nil {
				return err
			}
			out.Products++
			for _, v := range p.Variants {
				if err := catalog.UpsertVariant(ctx, &entity.ProductVariant{ID: v, ProductID: p.ID}); err != nil {
					return err
				}
				out.Variants++
			}
		}
		for _, m := range in.RawMaterials {
			material := &entity.RawMaterial{ID: m.ID, Name: m.Name, StockQuantity: m.StockQuantity, Unit: m.Unit}
			if err := catalog.UpsertRawMaterial(ctx, material); err != nil {
				return err
			}
			out.RawMaterials++
		}
		for _, r := range in.Recipes {
			entries := make([]entity.RecipeEntry, 0, len(r.Lines))
			for _, l := range r.Lines {
				entries = append(entries, entity.RecipeEntry{
					ProductID:     r.ProductID,
					RawMaterialID: l.RawMaterialID,
					QuantityUsed:  l.QuantityUsed,
				})
			}
			if err := catalog.ReplaceRecipe(ctx, r.ProductID, entries); err != nil {
				return err
			}
			out.Recipes++
		}
		return nil
	})
	if err != nil {
		uc.log.Error().Err(err).Msg("importar catálogo")
		return nil, err
	}
	uc.log.Info().
		Int("products", out.Products).
		Int("variants", out.Variants).
		Int("raw_materials", out.RawMaterials).
		Int("recipes", out.Recipes).
		Msg("catálogo importado")
	return &out, nil
}

func validateImport(in dto.CatalogImportRequest) error {
	seen := make(map[string]struct{})
	unique := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s sin id", domain.ErrInvalidInput, kind)
		}
		key := kind + "/" + id
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s %s repetido", domain.ErrInvalidInput, kind, id)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, p := range in.Products {
		if err := unique("producto", p.ID); err != nil {
			return err
		}
		if p.Name == "" || p.Stock < 0 {
			return fmt.Errorf("%w: producto %s", domain.ErrInvalidInput, p.ID)
		}
		for _, v := range p.Variants {
			if err := unique("variante", v); err != nil {
				return err
			}
		}
	}
	for _, m := range in.RawMaterials {
		if err := unique("materia prima", m.ID); err != nil {
			return err
		}
		if m.Name == "" || m.Unit == "" || m.StockQuantity.IsNegative() {
			return fmt.Errorf("%w: materia prima %s", domain.ErrInvalidInput, m.ID)
		}
	}
	for _, r := range in.Recipes {
		if err := unique("receta", r.ProductID); err != nil {
			return err
		}
		lines := make(map[string]struct{}, len(r.Lines))
		for _, l := range r.Lines {
			if l.RawMaterialID == "" || !l.QuantityUsed.IsPositive() {
				return fmt.Errorf("%w: receta de %s", domain.ErrInvalidInput, r.ProductID)
			}
			if _, ok := lines[l.RawMaterialID]; ok {
				return fmt.Errorf("%w: receta de %s repite %s", domain.ErrInvalidInput, r.ProductID, l.RawMaterialID)
			}
			lines[l.RawMaterialID] = struct{}{}
		}
	}
	return nil
}

// Receive suma mercancía recibida al stock de un producto (unidades enteras) o de una materia prima.
// Bloquea la fila igual que una venta, así que espera a las ventas en curso sobre ese ítem.
func (uc *UseCase) Receive(ctx context.Context, in dto.ReceiveStockRequest) (*dto.StockLevelResponse, error) {
	if (in.ProductID == "") == (in.RawMaterialID == "") || !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	if in.ProductID != "" && !in.Quantity.IsInteger() {
		return nil, fmt.Errorf("%w: el stock de producto es entero", domain.ErrInvalidInput)
	}

	var out *dto.StockLevelResponse
	err := uc.txRunner.Run(ctx, func(_ repository.CatalogRepository, ledger repository.StockLedger) error {
		if in.ProductID != "" {
			p, err := ledger.LockProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return domain.ProductNotFound(in.ProductID)
			}
			qty := in.Quantity.IntPart()
			if err := ledger.AdjustProductStock(ctx, p.ID, qty); err != nil {
				return err
			}
			out = &dto.StockLevelResponse{ID: p.ID, Name: p.Name, Stock: decimal.NewFromInt(p.Stock + qty)}
			return nil
		}
		m, err := ledger.LockRawMaterial(ctx, in.RawMaterialID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.RawMaterialNotFound(in.RawMaterialID)
		}
		if err := ledger.AdjustRawMaterialStock(ctx, m.ID, in.Quantity); err != nil {
			return err
		}
		out = &dto.StockLevelResponse{ID: m.ID, Name: m.Name, Stock: m.StockQuantity.Add(in.Quantity), Unit: m.Unit}
		return nil
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("product_id", in.ProductID).Str("raw_material_id", in.RawMaterialID).Msg("recepción rechazada")
		return nil, err
	}
	uc.log.Info().Str("id", out.ID).Str("quantity", in.Quantity.String()).Str("stock", out.Stock.String()).Msg("mercancía recibida")
	return out, nil
}
