package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

func seed() *Store {
	s := NewStore()
	s.PutProduct(entity.Product{ID: "p1", Name: "Latte", Stock: 3})
	s.PutVariant(entity.ProductVariant{ID: "v1", ProductID: "p1"})
	s.PutRawMaterial(entity.RawMaterial{ID: "m1", Name: "Café", StockQuantity: decimal.RequireFromString("1.5"), Unit: "kg"})
	s.AddRecipeEntry(entity.RecipeEntry{ProductID: "p1", RawMaterialID: "m1", QuantityUsed: decimal.RequireFromString("0.02")})
	return s
}

func TestTx_LecturasDeFilasInexistentes(t *testing.T) {
	tx := seed().Begin()
	defer func() { _ = tx.Rollback() }()
	ctx := context.Background()

	v, err := tx.ResolveVariant(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, v)

	p, err := tx.LockProduct(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	m, err := tx.LockRawMaterial(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, m)

	recipe, err := tx.ListRecipe(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, recipe)

	assert.Empty(t, tx.LockLog(), "una fila inexistente no se bloquea")
}

func TestTx_VeSusPropiasEscriturasYElCommitLasPublica(t *testing.T) {
	s := seed()
	ctx := context.Background()
	tx := s.Begin()

	_, err := tx.LockProduct(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, tx.AdjustProductStock(ctx, "p1", -2))

	p, err := tx.LockProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Stock)

	committed, _ := s.Product("p1")
	assert.Equal(t, int64(3), committed.Stock, "sin commit no se publica")

	require.NoError(t, tx.Commit())
	committed, _ = s.Product("p1")
	assert.Equal(t, int64(1), committed.Stock)
	assert.Equal(t, []string{"products/p1"}, tx.LockLog(), "el re-bloqueo no se duplica")
}

func TestTx_RollbackDescarta(t *testing.T) {
	s := seed()
	ctx := context.Background()
	tx := s.Begin()

	_, err := tx.LockRawMaterial(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, tx.AdjustRawMaterialStock(ctx, "m1", decimal.RequireFromString("-0.5")))
	require.NoError(t, tx.Rollback())

	m, _ := s.RawMaterial("m1")
	assert.True(t, m.StockQuantity.Equal(decimal.RequireFromString("1.5")))

	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
}

func TestTx_AjusteExigeBloqueoYRespetaCheck(t *testing.T) {
	tx := seed().Begin()
	defer func() { _ = tx.Rollback() }()
	ctx := context.Background()

	require.Error(t, tx.AdjustProductStock(ctx, "p1", -1), "sin bloqueo previo")

	_, err := tx.LockProduct(ctx, "p1")
	require.NoError(t, err)
	require.Error(t, tx.AdjustProductStock(ctx, "p1", -4), "stock >= 0")

	_, err = tx.LockRawMaterial(ctx, "m1")
	require.NoError(t, err)
	require.Error(t, tx.AdjustRawMaterialStock(ctx, "m1", decimal.RequireFromString("-1.51")))
	require.NoError(t, tx.AdjustRawMaterialStock(ctx, "m1", decimal.RequireFromString("-1.5")))
}

func TestTx_BloqueoEsperaAlCommitDeLaOtra(t *testing.T) {
	s := seed()
	ctx := context.Background()

	tx1 := s.Begin()
	_, err := tx1.LockProduct(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, tx1.AdjustProductStock(ctx, "p1", -1))

	got := make(chan int64, 1)
	go func() {
		tx2 := s.Begin()
		defer func() { _ = tx2.Rollback() }()
		p, err := tx2.LockProduct(ctx, "p1")
		if err != nil {
			got <- -1
			return
		}
		got <- p.Stock
	}()

	select {
	case <-got:
		t.Fatal("tx2 no debe obtener el bloqueo antes del commit de tx1")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, tx1.Commit())
	select {
	case stock := <-got:
		assert.Equal(t, int64(2), stock, "tx2 lee el valor confirmado por tx1")
	case <-time.After(time.Second):
		t.Fatal("tx2 sigue bloqueada tras el commit")
	}
}

func TestTx_EsperaDeBloqueoRespetaContexto(t *testing.T) {
	s := seed()
	tx1 := s.Begin()
	defer func() { _ = tx1.Rollback() }()
	_, err := tx1.LockRawMaterial(context.Background(), "m1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tx2 := s.Begin()
	defer func() { _ = tx2.Rollback() }()
	_, err = tx2.LockRawMaterial(ctx, "m1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTx_PedidosYRequestIDUnico(t *testing.T) {
	s := seed()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tx := s.Begin()
	o := &entity.Order{ID: "o1", RequestID: "r1", Status: entity.OrderStatusPlaced,
		Items: []entity.OrderLineItem{{VariantID: "v1", Quantity: 1}}, CreatedAt: now}
	require.NoError(t, tx.Create(ctx, o))

	got, err := tx.GetForUpdate(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.RequestID)
	require.NoError(t, tx.Commit())

	tx2 := s.Begin()
	err = tx2.Create(ctx, &entity.Order{ID: "o2", RequestID: "r1"})
	require.ErrorIs(t, err, domain.ErrDuplicate)
	require.NoError(t, tx2.Rollback())

	tx3 := s.Begin()
	require.NoError(t, tx3.MarkCancelled(ctx, "o1", now.Add(time.Hour)))
	require.ErrorIs(t, tx3.MarkCancelled(ctx, "nope", now), domain.ErrNotFound)
	require.NoError(t, tx3.Commit())

	saved, ok := s.Order("o1")
	require.True(t, ok)
	assert.Equal(t, entity.OrderStatusCancelled, saved.Status)
	require.NotNil(t, saved.CancelledAt)
	assert.True(t, saved.CancelledAt.Equal(now.Add(time.Hour)))
}

func TestTxRunner_CommitYRollback(t *testing.T) {
	s := seed()
	runner := NewTxRunner(s)
	ctx := context.Background()

	err := runner.Run(ctx, func(ledger repository.StockLedger, _ repository.OrderRepository) error {
		if _, err := ledger.LockProduct(ctx, "p1"); err != nil {
			return err
		}
		return ledger.AdjustProductStock(ctx, "p1", -1)
	})
	require.NoError(t, err)

	err = runner.Run(ctx, func(ledger repository.StockLedger, _ repository.OrderRepository) error {
		if _, err := ledger.LockProduct(ctx, "p1"); err != nil {
			return err
		}
		if err := ledger.AdjustProductStock(ctx, "p1", -1); err != nil {
			return err
		}
		return domain.ErrConflict
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	p, _ := s.Product("p1")
	assert.Equal(t, int64(2), p.Stock)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = runner.Run(cancelled, func(repository.StockLedger, repository.OrderRepository) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
