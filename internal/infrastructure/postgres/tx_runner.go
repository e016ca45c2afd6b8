package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/pos-stock/internal/application/catalog"
	"github.com/jhoicas/pos-stock/internal/application/order"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var (
	_ order.TxRunner   = (*TxRunner)(nil)
	_ catalog.TxRunner = (*CatalogTxRunner)(nil)
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner construye el runner con el pool. lockTimeout > 0 limita la espera de cada
// SELECT ... FOR UPDATE; al vencer, PostgreSQL aborta con 55P03 y Run devuelve domain.ErrRetryable.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	ledger repository.StockLedger,
	orders repository.OrderRepository,
) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewStockLedger(tx), NewOrderRepository(tx))
	})
}

// Catalog devuelve un runner con la misma configuración para los casos de uso del catálogo.
func (r *TxRunner) Catalog() *CatalogTxRunner {
	return &CatalogTxRunner{r: r}
}

func (r *TxRunner) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if r.lockTimeout > 0 {
		// SET no admite parámetros; el valor es un entero generado aquí.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return classifyTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// CatalogTxRunner entrega CatalogRepository y StockLedger atados a la misma transacción.
type CatalogTxRunner struct {
	r *TxRunner
}

// Run misma semántica que TxRunner.Run.
func (c *CatalogTxRunner) Run(ctx context.Context, fn func(
	catalog repository.CatalogRepository,
	ledger repository.StockLedger,
) error) error {
	return c.r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewCatalogRepository(tx), NewStockLedger(tx))
	})
}
