package order

import (
	"context"

	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Commit si fn devuelve nil, Rollback en cualquier otro caso. Garantiza la atomicidad del lote.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		ledger repository.StockLedger,
		orders repository.OrderRepository,
	) error) error
}

// IdempotencyGuard evita aplicar dos veces el mismo pedido (reenvíos de la cola offline del POS).
type IdempotencyGuard interface {
	// Acquire reserva la clave; false si ya estaba tomada.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release libera la clave para permitir reintentar un pedido que falló.
	Release(ctx context.Context, key string) error
}
