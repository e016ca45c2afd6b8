package repository

import (
	"context"
	"time"

	"github.com/jhoicas/pos-stock/internal/domain/entity"
)

// OrderRepository define el puerto de persistencia de pedidos (usado dentro de la transacción de stock).
type OrderRepository interface {
	// Create guarda cabecera y líneas. ErrDuplicate si RequestID ya existe.
	Create(ctx context.Context, order *entity.Order) error
	// GetForUpdate obtiene el pedido con sus líneas y bloquea la cabecera. (nil, nil) si no existe.
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) error
}
