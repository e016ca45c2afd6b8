package dto

import (
	"time"

	"github.com/jhoicas/pos-stock/internal/domain"
	"github.com/jhoicas/pos-stock/internal/domain/entity"
)

// LineItemDTO línea de pedido tal como la envía el POS.
type LineItemDTO struct {
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

// OrderItemsRequest cuerpo de precheck/checkout: [{"variant_id": "...", "quantity": 2}, ...].
type OrderItemsRequest []LineItemDTO

// ToEntities valida y convierte las líneas. ErrInvalidInput si la lista está vacía o una línea es inválida.
func (r OrderItemsRequest) ToEntities() ([]entity.OrderLineItem, error) {
	if len(r) == 0 {
		return nil, domain.ErrInvalidInput
	}
	items := make([]entity.OrderLineItem, 0, len(r))
	for _, in := range r {
		if in.VariantID == "" || in.Quantity <= 0 {
			return nil, domain.ErrInvalidInput
		}
		items = append(items, entity.OrderLineItem{VariantID: in.VariantID, Quantity: in.Quantity})
	}
	return items, nil
}

// OrderResponse pedido creado o anulado.
type OrderResponse struct {
	ID          string        `json:"id"`
	RequestID   string        `json:"request_id,omitempty"`
	Status      string        `json:"status"`
	Items       []LineItemDTO `json:"items"`
	CreatedAt   time.Time     `json:"created_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

// NewOrderResponse mapea la entidad.
func NewOrderResponse(o *entity.Order) OrderResponse {
	items := make([]LineItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = LineItemDTO{VariantID: it.VariantID, Quantity: it.Quantity}
	}
	return OrderResponse{
		ID:          o.ID,
		RequestID:   o.RequestID,
		Status:      o.Status,
		Items:       items,
		CreatedAt:   o.CreatedAt,
		CancelledAt: o.CancelledAt,
	}
}
