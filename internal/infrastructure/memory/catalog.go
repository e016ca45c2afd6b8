package memory

import (
	"context"

	"github.com/jhoicas/pos-stock/internal/application/catalog"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var (
	_ repository.CatalogRepository = (*Tx)(nil)
	_ catalog.TxRunner             = (*CatalogTxRunner)(nil)
)

// UpsertProduct bloquea la fila; al confirmar inserta el producto o solo renombra el existente.
func (t *Tx) UpsertProduct(ctx context.Context, product *entity.Product) error {
	if err := t.lock(ctx, productKey(product.ID)); err != nil {
		return err
	}
	p := *product
	t.stage(func(s *Store) {
		if cur, ok := s.products[p.ID]; ok {
			cur.Name = p.Name
			s.products[p.ID] = cur
			return
		}
		s.products[p.ID] = p
	})
	return nil
}

// UpsertVariant al confirmar inserta o reasigna la variante.
func (t *Tx) UpsertVariant(ctx context.Context, variant *entity.ProductVariant) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	v := *variant
	t.stage(func(s *Store) { s.variants[v.ID] = v })
	return nil
}

// UpsertRawMaterial bloquea la fila; al confirmar inserta o actualiza nombre y unidad.
func (t *Tx) UpsertRawMaterial(ctx context.Context, material *entity.RawMaterial) error {
	if err := t.lock(ctx, materialKey(material.ID)); err != nil {
		return err
	}
	m := *material
	t.stage(func(s *Store) {
		if cur, ok := s.materials[m.ID]; ok {
			cur.Name, cur.Unit = m.Name, m.Unit
			s.materials[m.ID] = cur
			return
		}
		s.materials[m.ID] = m
	})
	return nil
}

// ReplaceRecipe al confirmar reemplaza las líneas de receta del producto.
func (t *Tx) ReplaceRecipe(ctx context.Context, productID string, entries []entity.RecipeEntry) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	cp := append([]entity.RecipeEntry(nil), entries...)
	t.stage(func(s *Store) {
		if len(cp) == 0 {
			delete(s.recipes, productID)
			return
		}
		s.recipes[productID] = cp
	})
	return nil
}

func (t *Tx) stage(op func(s *Store)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.catalogOps = append(t.catalogOps, op)
}

// CatalogTxRunner ejecuta callbacks del catálogo dentro de una transacción en memoria.
type CatalogTxRunner struct {
	store *Store
}

// NewCatalogTxRunner construye el runner sobre el almacén.
func NewCatalogTxRunner(store *Store) *CatalogTxRunner {
	return &CatalogTxRunner{store: store}
}

// Run Commit si fn devuelve nil, Rollback en cualquier otro caso.
func (r *CatalogTxRunner) Run(ctx context.Context, fn func(
	catalog repository.CatalogRepository,
	ledger repository.StockLedger,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := r.store.Begin()
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx, tx); err != nil {
		return err
	}
	return tx.Commit()
}
