package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var (
	_ repository.StockLedger     = (*Tx)(nil)
	_ repository.OrderRepository = (*Tx)(nil)
)

// Tx transacción en memoria. Las escrituras quedan en un overlay local hasta Commit y los
// bloqueos de fila se liberan solo en Commit o Rollback.
type Tx struct {
	store *Store

	mu            sync.Mutex
	done          bool
	held          map[string]struct{}
	lockLog       []string
	productDelta  map[string]int64
	materialDelta map[string]decimal.Decimal
	created       []entity.Order
	cancelled     map[string]entity.Order
	catalogOps    []func(s *Store)
}

func productKey(id string) string  { return "products/" + id }
func materialKey(id string) string { return "raw_materials/" + id }
func orderKey(id string) string    { return "orders/" + id }
func requestKey(id string) string  { return "orders.request_id/" + id }

// LockLog filas bloqueadas por la transacción, en orden de adquisición.
func (t *Tx) LockLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lockLog...)
}

// lock toma el bloqueo exclusivo de la fila o espera a que lo libere la transacción que lo tiene.
// Re-entrante para la misma transacción; respeta la cancelación del contexto.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	ch := t.store.rowLock(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("esperando bloqueo de %s: %w", key, ctx.Err())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.held[key] = struct{}{}
	t.lockLog = append(t.lockLog, key)
	return nil
}

func (t *Tx) checkOpen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	return nil
}

func (t *Tx) holds(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[key]
	return ok
}

// ResolveVariant lectura sin bloqueo (las variantes no se modifican aquí).
func (t *Tx) ResolveVariant(ctx context.Context, variantID string) (*entity.ProductVariant, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	v, ok := t.store.variants[variantID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// LockProduct bloquea la fila del producto y la devuelve con las escrituras propias aplicadas.
func (t *Tx) LockProduct(ctx context.Context, productID string) (*entity.Product, error) {
	if _, ok := t.store.Product(productID); !ok {
		return nil, nil
	}
	if err := t.lock(ctx, productKey(productID)); err != nil {
		return nil, err
	}
	p, _ := t.store.Product(productID)
	t.mu.Lock()
	p.Stock += t.productDelta[productID]
	t.mu.Unlock()
	return &p, nil
}

// AdjustProductStock exige el bloqueo de la fila y respeta CHECK (stock >= 0).
func (t *Tx) AdjustProductStock(ctx context.Context, productID string, delta int64) error {
	if !t.holds(productKey(productID)) {
		return fmt.Errorf("producto %s: fila no bloqueada por la transacción", productID)
	}
	p, ok := t.store.Product(productID)
	if !ok {
		return domain.ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Stock+t.productDelta[productID]+delta < 0 {
		return fmt.Errorf("producto %s: violación de stock >= 0", productID)
	}
	t.productDelta[productID] += delta
	return nil
}

// ListRecipe líneas de receta del producto (tabla de solo lectura).
func (t *Tx) ListRecipe(ctx context.Context, productID string) ([]entity.RecipeEntry, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return append([]entity.RecipeEntry(nil), t.store.recipes[productID]...), nil
}

// LockRawMaterial bloquea la fila de la materia prima.
func (t *Tx) LockRawMaterial(ctx context.Context, rawMaterialID string) (*entity.RawMaterial, error) {
	if _, ok := t.store.RawMaterial(rawMaterialID); !ok {
		return nil, nil
	}
	if err := t.lock(ctx, materialKey(rawMaterialID)); err != nil {
		return nil, err
	}
	m, _ := t.store.RawMaterial(rawMaterialID)
	t.mu.Lock()
	m.StockQuantity = m.StockQuantity.Add(t.materialDelta[rawMaterialID])
	t.mu.Unlock()
	return &m, nil
}

// AdjustRawMaterialStock exige el bloqueo de la fila y respeta CHECK (stock_quantity >= 0).
func (t *Tx) AdjustRawMaterialStock(ctx context.Context, rawMaterialID string, delta decimal.Decimal) error {
	if !t.holds(materialKey(rawMaterialID)) {
		return fmt.Errorf("materia prima %s: fila no bloqueada por la transacción", rawMaterialID)
	}
	m, ok := t.store.RawMaterial(rawMaterialID)
	if !ok {
		return domain.ErrNotFound
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.materialDelta[rawMaterialID].Add(delta)
	if m.StockQuantity.Add(next).IsNegative() {
		return fmt.Errorf("materia prima %s: violación de stock_quantity >= 0", rawMaterialID)
	}
	t.materialDelta[rawMaterialID] = next
	return nil
}

// Create registra el pedido en la transacción. ErrDuplicate si el RequestID ya existe.
func (t *Tx) Create(ctx context.Context, order *entity.Order) error {
	if order.RequestID != "" {
		// Equivale a la espera sobre el índice único request_id.
		if err := t.lock(ctx, requestKey(order.RequestID)); err != nil {
			return err
		}
		t.store.mu.Lock()
		_, exists := t.store.requestIDs[order.RequestID]
		t.store.mu.Unlock()
		if exists {
			return domain.ErrDuplicate
		}
	}
	if err := t.lock(ctx, orderKey(order.ID)); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.created {
		if o.ID == order.ID || (order.RequestID != "" && o.RequestID == order.RequestID) {
			return domain.ErrDuplicate
		}
	}
	cp := *order
	cp.Items = append([]entity.OrderLineItem(nil), order.Items...)
	t.created = append(t.created, cp)
	return nil
}

// GetForUpdate bloquea el pedido y lo devuelve con las escrituras propias aplicadas.
func (t *Tx) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	if err := t.lock(ctx, orderKey(id)); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if o, ok := t.cancelled[id]; ok {
		return cloneOrder(o), nil
	}
	for _, o := range t.created {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	o, ok := t.store.Order(id)
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

// MarkCancelled cambia el estado a CANCELLED; requiere GetForUpdate previo.
func (t *Tx) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	o, err := t.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if o == nil {
		return domain.ErrNotFound
	}
	o.Status = entity.OrderStatusCancelled
	o.CancelledAt = &at
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled[id] = *o
	return nil
}

func cloneOrder(o entity.Order) *entity.Order {
	o.Items = append([]entity.OrderLineItem(nil), o.Items...)
	return &o
}

// Commit aplica el overlay al almacén y libera los bloqueos.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}
	t.done = true
	t.mu.Unlock()

	s := t.store
	s.mu.Lock()
	for _, op := range t.catalogOps {
		op(s)
	}
	for id, delta := range t.productDelta {
		p := s.products[id]
		p.Stock += delta
		s.products[id] = p
	}
	for id, delta := range t.materialDelta {
		m := s.materials[id]
		m.StockQuantity = m.StockQuantity.Add(delta)
		s.materials[id] = m
	}
	for _, o := range t.created {
		s.orders[o.ID] = o
		if o.RequestID != "" {
			s.requestIDs[o.RequestID] = o.ID
		}
	}
	for id, o := range t.cancelled {
		s.orders[id] = o
	}
	s.mu.Unlock()

	t.release()
	return nil
}

// Rollback descarta el overlay y libera los bloqueos. Sin efecto tras Commit.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}
	t.done = true
	t.mu.Unlock()
	t.release()
	return nil
}

func (t *Tx) release() {
	t.mu.Lock()
	keys := make([]string, 0, len(t.held))
	for key := range t.held {
		keys = append(keys, key)
	}
	t.held = make(map[string]struct{})
	t.mu.Unlock()
	for _, key := range keys {
		<-t.store.rowLock(key)
	}
}
