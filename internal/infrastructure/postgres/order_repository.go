package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
	"github.com/jhoicas/pos-stock/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo implementación de OrderRepository sobre PostgreSQL (usable con pool o tx).
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador de pedidos. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create persiste cabecera y líneas. request_id vacío se guarda como NULL.
func (r *OrderRepo) Create(ctx context.Context, order *entity.Order) error {
	var requestID *string
	if order.RequestID != "" {
		requestID = &order.RequestID
	}
	var createdBy *string
	if order.CreatedBy != "" {
		createdBy = &order.CreatedBy
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO orders (id, request_id, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		order.ID, requestID, order.Status, createdBy, order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for i, item := range order.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO order_items (order_id, line_no, variant_id, quantity)
			VALUES ($1, $2, $3, $4)`,
			order.ID, i+1, item.VariantID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// GetForUpdate obtiene el pedido bloqueando la cabecera (SELECT FOR UPDATE) y sus líneas en orden.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	var o entity.Order
	var requestID, createdBy *string
	err := r.q.QueryRow(ctx, `
		SELECT id, request_id, status, created_by, created_at, cancelled_at
		FROM orders WHERE id = $1
		FOR UPDATE`, id,
	).Scan(&o.ID, &requestID, &o.Status, &createdBy, &o.CreatedAt, &o.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order for update: %w", err)
	}
	if requestID != nil {
		o.RequestID = *requestID
	}
	if createdBy != nil {
		o.CreatedBy = *createdBy
	}

	rows, err := r.q.Query(ctx, `
		SELECT variant_id, quantity FROM order_items
		WHERE order_id = $1 ORDER BY line_no`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item entity.OrderLineItem
		if err := rows.Scan(&item.VariantID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &o, nil
}

// MarkCancelled cambia el estado a CANCELLED.
func (r *OrderRepo) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE orders SET status = $2, cancelled_at = $3 WHERE id = $1`,
		id, entity.OrderStatusCancelled, at,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
