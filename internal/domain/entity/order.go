package entity

import "time"

// Factor dirección del movimiento de stock: +1 consume (venta), -1 repone (anulación).
type Factor int

const (
	FactorApply   Factor = 1
	FactorReverse Factor = -1
)

// Valid solo se admiten +1 y -1.
func (f Factor) Valid() bool {
	return f == FactorApply || f == FactorReverse
}

// Consumes indica si el movimiento descuenta stock (requiere validar suficiencia).
func (f Factor) Consumes() bool { return f > 0 }

// OrderLineItem línea de pedido entregada por el flujo de ventas.
type OrderLineItem struct {
	VariantID string
	Quantity  int64
}

// Estados de pedido.
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusCancelled = "CANCELLED"
)

// Order pedido del punto de venta con sus líneas.
type Order struct {
	ID          string
	RequestID   string // clave de idempotencia del cliente (cola offline); puede ir vacía
	Status      string
	Items       []OrderLineItem
	CreatedBy   string
	CreatedAt   time.Time
	CancelledAt *time.Time
}
