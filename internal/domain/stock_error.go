package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// StockErrorKind identifica el tipo de fallo de conciliación de stock.
type StockErrorKind string

const (
	KindVariantNotFound           StockErrorKind = "VARIANT_NOT_FOUND"
	KindProductNotFound           StockErrorKind = "PRODUCT_NOT_FOUND"
	KindInsufficientProductStock  StockErrorKind = "INSUFFICIENT_PRODUCT_STOCK"
	KindRawMaterialNotFound       StockErrorKind = "RAW_MATERIAL_NOT_FOUND"
	KindInsufficientMaterialStock StockErrorKind = "INSUFFICIENT_MATERIAL_STOCK"
)

// StockError es el fallo tipado de la conciliación. Los campos son estructurados (no mensajes
// preformateados) para que el caller pueda localizar o formatear el texto.
// Solo se llenan los campos que aplican al Kind.
type StockError struct {
	Kind          StockErrorKind
	VariantID     string
	ProductID     string
	RawMaterialID string
	Name          string // nombre del producto o materia prima
	Unit          string // unidad de la materia prima (g, ml, und...)
	Requested     decimal.Decimal
	Available     decimal.Decimal
}

// VariantNotFound la variante no existe.
func VariantNotFound(variantID string) *StockError {
	return &StockError{Kind: KindVariantNotFound, VariantID: variantID}
}

// ProductNotFound la variante apunta a un producto inexistente (falla de integridad).
func ProductNotFound(productID string) *StockError {
	return &StockError{Kind: KindProductNotFound, ProductID: productID}
}

// InsufficientProductStock el producto terminado no alcanza para la cantidad pedida.
func InsufficientProductStock(productID, name string, requested, available int64) *StockError {
	return &StockError{
		Kind:      KindInsufficientProductStock,
		ProductID: productID,
		Name:      name,
		Requested: decimal.NewFromInt(requested),
		Available: decimal.NewFromInt(available),
	}
}

// RawMaterialNotFound la receta referencia una materia prima inexistente.
func RawMaterialNotFound(rawMaterialID string) *StockError {
	return &StockError{Kind: KindRawMaterialNotFound, RawMaterialID: rawMaterialID}
}

// InsufficientMaterialStock la materia prima no alcanza para la receta.
func InsufficientMaterialStock(rawMaterialID, name, unit string, requested, available decimal.Decimal) *StockError {
	return &StockError{
		Kind:          KindInsufficientMaterialStock,
		RawMaterialID: rawMaterialID,
		Name:          name,
		Unit:          unit,
		Requested:     requested,
		Available:     available,
	}
}

func (e *StockError) Error() string {
	switch e.Kind {
	case KindVariantNotFound:
		return fmt.Sprintf("variante %s no encontrada", e.VariantID)
	case KindProductNotFound:
		return fmt.Sprintf("producto %s no encontrado", e.ProductID)
	case KindInsufficientProductStock:
		return fmt.Sprintf("stock insuficiente de %q: requerido %s, disponible %s",
			e.Name, e.Requested.String(), e.Available.String())
	case KindRawMaterialNotFound:
		return fmt.Sprintf("materia prima %s no encontrada", e.RawMaterialID)
	case KindInsufficientMaterialStock:
		return fmt.Sprintf("materia prima insuficiente %q: requerido %s %s, disponible %s %s",
			e.Name, e.Requested.String(), e.Unit, e.Available.String(), e.Unit)
	}
	return "error de stock"
}

// Is permite errors.Is(err, ErrNotFound) y errors.Is(err, ErrInsufficientStock).
func (e *StockError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.IsNotFound()
	case ErrInsufficientStock:
		return e.Kind == KindInsufficientProductStock || e.Kind == KindInsufficientMaterialStock
	}
	return false
}

// IsNotFound indica si el fallo es de integridad (fila faltante) y no de cantidad.
func (e *StockError) IsNotFound() bool {
	return e.Kind == KindVariantNotFound || e.Kind == KindProductNotFound || e.Kind == KindRawMaterialNotFound
}

// AsStockError extrae el *StockError de una cadena de errores.
func AsStockError(err error) (*StockError, bool) {
	var se *StockError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
