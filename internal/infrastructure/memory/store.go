// Package memory implementa los puertos de stock y pedidos en memoria, con transacciones y
// bloqueos de fila exclusivos equivalentes a SELECT ... FOR UPDATE. Se usa en pruebas y en
// entornos sin base de datos.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-stock/internal/application/order"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

// ErrTxDone la transacción ya hizo Commit o Rollback.
var ErrTxDone = errors.New("transacción finalizada")

// Store estado confirmado (committed) de productos, variantes, recetas, materias primas y pedidos.
type Store struct {
	mu         sync.Mutex
	products   map[string]entity.Product
	variants   map[string]entity.ProductVariant
	recipes    map[string][]entity.RecipeEntry
	materials  map[string]entity.RawMaterial
	orders     map[string]entity.Order
	requestIDs map[string]string
	locks      map[string]chan struct{}
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]entity.Product),
		variants:   make(map[string]entity.ProductVariant),
		recipes:    make(map[string][]entity.RecipeEntry),
		materials:  make(map[string]entity.RawMaterial),
		orders:     make(map[string]entity.Order),
		requestIDs: make(map[string]string),
		locks:      make(map[string]chan struct{}),
	}
}

// PutProduct inserta o reemplaza un producto.
func (s *Store) PutProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutVariant inserta o reemplaza una variante.
func (s *Store) PutVariant(v entity.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// PutRawMaterial inserta o reemplaza una materia prima.
func (s *Store) PutRawMaterial(m entity.RawMaterial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.ID] = m
}

// AddRecipeEntry agrega una línea de receta al producto.
func (s *Store) AddRecipeEntry(e entity.RecipeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[e.ProductID] = append(s.recipes[e.ProductID], e)
}

// Product lectura confirmada, sin bloqueo.
func (s *Store) Product(id string) (entity.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// RawMaterial lectura confirmada, sin bloqueo.
func (s *Store) RawMaterial(id string) (entity.RawMaterial, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	return m, ok
}

// Order lectura confirmada, sin bloqueo.
func (s *Store) Order(id string) (entity.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// StockSnapshot copia del stock confirmado de todos los productos y materias primas.
func (s *Store) StockSnapshot() (map[string]int64, map[string]decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make(map[string]int64, len(s.products))
	for id, p := range s.products {
		products[id] = p.Stock
	}
	materials := make(map[string]decimal.Decimal, len(s.materials))
	for id, m := range s.materials {
		materials[id] = m.StockQuantity
	}
	return products, materials
}

// Begin abre una transacción.
func (s *Store) Begin() *Tx {
	return &Tx{
		store:         s,
		held:          make(map[string]struct{}),
		productDelta:  make(map[string]int64),
		materialDelta: make(map[string]decimal.Decimal),
		cancelled:     make(map[string]entity.Order),
	}
}

// rowLock devuelve el semáforo de la fila, creándolo si no existe.
func (s *Store) rowLock(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

var _ order.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción en memoria (Commit si nil, Rollback si error).
type TxRunner struct {
	store *Store
}

// NewTxRunner construye el runner sobre el almacén.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{store: store}
}

// Run misma semántica que postgres.TxRunner.Run: repos atados a una sola transacción.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ledger repository.StockLedger,
	orders repository.OrderRepository,
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
