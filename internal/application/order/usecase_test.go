package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-stock/internal/application/inventory"
	"github.com/jhoicas/pos-stock/internal/application/order"
	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
	"github.com/jhoicas/pos-stock/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeGuard struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newFakeGuard() *fakeGuard { return &fakeGuard{keys: make(map[string]bool)} }

func (g *fakeGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	g.released = append(g.released, key)
	return nil
}

// flakyRunner falla con domain.ErrRetryable las primeras `failures` ejecuciones.
type flakyRunner struct {
	inner    order.TxRunner
	failures int
	calls    int
}

func (f *flakyRunner) Run(ctx context.Context, fn func(repository.StockLedger, repository.OrderRepository) error) error {
	f.calls++
	if f.calls <= f.failures {
		return fmt.Errorf("%w: lock timeout", domain.ErrRetryable)
	}
	return f.inner.Run(ctx, fn)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

const (
	latteID  = "p-latte"
	latteVar = "v-latte"
	coffeeID = "m-coffee"
	milkID   = "m-milk"
)

func newStore() *memory.Store {
	s := memory.NewStore()
	s.PutProduct(entity.Product{ID: latteID, Name: "Latte", Stock: 10})
	s.PutVariant(entity.ProductVariant{ID: latteVar, ProductID: latteID})
	s.PutRawMaterial(entity.RawMaterial{ID: coffeeID, Name: "Café", StockQuantity: decimal.NewFromInt(500), Unit: "g"})
	s.PutRawMaterial(entity.RawMaterial{ID: milkID, Name: "Leche", StockQuantity: decimal.NewFromInt(2000), Unit: "ml"})
	s.AddRecipeEntry(entity.RecipeEntry{ProductID: latteID, RawMaterialID: coffeeID, QuantityUsed: decimal.NewFromInt(20)})
	s.AddRecipeEntry(entity.RecipeEntry{ProductID: latteID, RawMaterialID: milkID, QuantityUsed: decimal.NewFromInt(200)})
	return s
}

func newUseCase(runner order.TxRunner, guard order.IdempotencyGuard) *order.UseCase {
	return order.NewUseCase(runner, inventory.NewReconciler(inventory.LockOrderInput), guard,
		order.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}, nil)
}

func lattes(n int64) []entity.OrderLineItem {
	return []entity.OrderLineItem{{VariantID: latteVar, Quantity: n}}
}

func stockOf(t *testing.T, s *memory.Store) (int64, decimal.Decimal, decimal.Decimal) {
	t.Helper()
	p, ok := s.Product(latteID)
	require.True(t, ok)
	coffee, ok := s.RawMaterial(coffeeID)
	require.True(t, ok)
	milk, ok := s.RawMaterial(milkID)
	require.True(t, ok)
	return p.Stock, coffee.StockQuantity, milk.StockQuantity
}

// ──────────────────────────────────────────────────────────────────────────────
// PreCheck
// ──────────────────────────────────────────────────────────────────────────────

func TestPreCheck_NoModificaStock(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)

	require.NoError(t, uc.PreCheck(context.Background(), lattes(10)))

	err := uc.PreCheck(context.Background(), lattes(11))
	se, ok := domain.AsStockError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInsufficientProductStock, se.Kind)

	stock, coffee, milk := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
	assert.True(t, coffee.Equal(decimal.NewFromInt(500)))
	assert.True(t, milk.Equal(decimal.NewFromInt(2000)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Checkout
// ──────────────────────────────────────────────────────────────────────────────

func TestCheckout_DescuentaYGuardaPedido(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)

	o, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(4), CreatedBy: "caja-1"})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, entity.OrderStatusPlaced, o.Status)
	assert.Equal(t, "caja-1", o.CreatedBy)

	stock, coffee, milk := stockOf(t, s)
	assert.Equal(t, int64(6), stock)
	assert.True(t, coffee.Equal(decimal.NewFromInt(420)))
	assert.True(t, milk.Equal(decimal.NewFromInt(1200)))

	saved, ok := s.Order(o.ID)
	require.True(t, ok)
	assert.Equal(t, lattes(4), saved.Items)
}

func TestCheckout_StockInsuficienteNoGuardaPedido(t *testing.T) {
	s := newStore()
	guard := newFakeGuard()
	uc := newUseCase(memory.NewTxRunner(s), guard)

	o, err := uc.Checkout(context.Background(), order.CheckoutInput{RequestID: "req-1", Items: lattes(11)})
	require.Error(t, err)
	assert.Nil(t, o)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
	// La clave se libera para poder reintentar el pedido corregido.
	assert.Equal(t, []string{"req-1"}, guard.released)

	_, err = uc.Checkout(context.Background(), order.CheckoutInput{RequestID: "req-1", Items: lattes(2)})
	require.NoError(t, err)
}

func TestCheckout_ReenvioDuplicado(t *testing.T) {
	s := newStore()
	guard := newFakeGuard()
	uc := newUseCase(memory.NewTxRunner(s), guard)
	in := order.CheckoutInput{RequestID: "req-dup", Items: lattes(1)}

	_, err := uc.Checkout(context.Background(), in)
	require.NoError(t, err)

	_, err = uc.Checkout(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(9), stock, "el reenvío no debe descontar otra vez")
}

func TestCheckout_DuplicadoSinGuardLoDetectaElAlmacen(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)
	in := order.CheckoutInput{RequestID: "req-db", Items: lattes(1)}

	_, err := uc.Checkout(context.Background(), in)
	require.NoError(t, err)

	_, err = uc.Checkout(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(9), stock)
}

func TestCheckout_ErrorDelGuard(t *testing.T) {
	s := newStore()
	guard := newFakeGuard()
	guard.err = errors.New("redis caído")
	uc := newUseCase(memory.NewTxRunner(s), guard)

	_, err := uc.Checkout(context.Background(), order.CheckoutInput{RequestID: "req-x", Items: lattes(1)})
	require.EqualError(t, err, "redis caído")

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
}

func TestCheckout_PedidoVacio(t *testing.T) {
	uc := newUseCase(memory.NewTxRunner(newStore()), nil)
	_, err := uc.Checkout(context.Background(), order.CheckoutInput{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckout_ReintentaConflictosDeBloqueo(t *testing.T) {
	s := newStore()
	runner := &flakyRunner{inner: memory.NewTxRunner(s), failures: 2}
	uc := newUseCase(runner, nil)

	_, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(7), stock, "el lote se aplica una sola vez")
}

func TestCheckout_AgotaReintentos(t *testing.T) {
	s := newStore()
	runner := &flakyRunner{inner: memory.NewTxRunner(s), failures: 5}
	uc := newUseCase(runner, nil)

	_, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(3)})
	require.ErrorIs(t, err, domain.ErrRetryable)
	assert.Equal(t, 3, runner.calls, "1 intento + 2 reintentos")

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
}

func TestCheckout_NoReintentaErroresDeNegocio(t *testing.T) {
	s := newStore()
	runner := &flakyRunner{inner: memory.NewTxRunner(s)}
	uc := newUseCase(runner, nil)

	_, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(50)})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, runner.calls)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_ReponeStock(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)

	o, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(4)})
	require.NoError(t, err)

	cancelled, err := uc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	stock, coffee, milk := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
	assert.True(t, coffee.Equal(decimal.NewFromInt(500)))
	assert.True(t, milk.Equal(decimal.NewFromInt(2000)))

	saved, ok := s.Order(o.ID)
	require.True(t, ok)
	assert.Equal(t, entity.OrderStatusCancelled, saved.Status)
}

func TestCancel_DobleAnulacionEsConflicto(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)

	o, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(2)})
	require.NoError(t, err)
	_, err = uc.Cancel(context.Background(), o.ID)
	require.NoError(t, err)

	_, err = uc.Cancel(context.Background(), o.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(10), stock, "la segunda anulación no repone de nuevo")
}

func TestCancel_PedidoInexistente(t *testing.T) {
	uc := newUseCase(memory.NewTxRunner(newStore()), nil)

	_, err := uc.Cancel(context.Background(), "no-existe")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = uc.Cancel(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCancel_ConcurrenteSoloUnoRepone(t *testing.T) {
	s := newStore()
	uc := newUseCase(memory.NewTxRunner(s), nil)

	o, err := uc.Checkout(context.Background(), order.CheckoutInput{Items: lattes(5)})
	require.NoError(t, err)

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Cancel(context.Background(), o.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	stock, _, _ := stockOf(t, s)
	assert.Equal(t, int64(10), stock)
}
