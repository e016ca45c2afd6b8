// Package cli traduce los resultados de la conciliación a mensajes para el operador del POS.
package cli

import (
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/pos-stock/internal/application/dto"
	"github.com/jhoicas/pos-stock/internal/domain"
)

// Claves del catálogo (texto en inglés; el español se registra como traducción).
const (
	msgVariantNotFound     = "Variant %s does not exist."
	msgProductNotFound     = "Product %s does not exist."
	msgInsufficientProduct = "Not enough %s: %s requested, %s available."
	msgMaterialNotFound    = "Raw material %s does not exist."
	msgInsufficientMat     = "Not enough %s: %s %s required, %s %s available."
	msgDuplicate           = "This order was already registered."
	msgConflict            = "The order was already cancelled."
	msgNotFound            = "Order not found."
	msgInvalid             = "Invalid order: every line needs a variant and a quantity greater than zero."
	msgRetry               = "Stock is busy with another sale, try again."
)

var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	es := map[string]string{
		msgVariantNotFound:     "La variante %s no existe.",
		msgProductNotFound:     "El producto %s no existe.",
		msgInsufficientProduct: "No hay suficiente %s: se piden %s, hay %s.",
		msgMaterialNotFound:    "La materia prima %s no existe.",
		msgInsufficientMat:     "No hay suficiente %s: se requieren %s %s, hay %s %s.",
		msgDuplicate:           "Este pedido ya fue registrado.",
		msgConflict:            "El pedido ya estaba anulado.",
		msgNotFound:            "Pedido no encontrado.",
		msgInvalid:             "Pedido inválido: cada línea necesita una variante y una cantidad mayor que cero.",
		msgRetry:               "El stock está ocupado por otra venta, intente de nuevo.",
	}
	for key, text := range es {
		_ = message.SetString(language.Spanish, key, text)
		_ = message.SetString(language.English, key, key)
	}
}

// ParseLang elige el idioma soportado más cercano ("es", "en-US", "es-CO"...). Por defecto español.
func ParseLang(s string) language.Tag {
	if s == "" {
		return language.Spanish
	}
	_, idx := language.MatchStrings(matcher, s)
	return supported[idx]
}

// Describe convierte el error en {code, message} localizado.
func Describe(err error, lang language.Tag) dto.ErrorResponse {
	p := message.NewPrinter(lang)
	if se, ok := domain.AsStockError(err); ok {
		return dto.ErrorResponse{Code: string(se.Kind), Message: describeStock(p, se)}
	}
	switch {
	case errors.Is(err, domain.ErrDuplicate):
		return dto.ErrorResponse{Code: "DUPLICATE", Message: p.Sprintf(msgDuplicate)}
	case errors.Is(err, domain.ErrConflict):
		return dto.ErrorResponse{Code: "CONFLICT", Message: p.Sprintf(msgConflict)}
	case errors.Is(err, domain.ErrNotFound):
		return dto.ErrorResponse{Code: "NOT_FOUND", Message: p.Sprintf(msgNotFound)}
	case errors.Is(err, domain.ErrInvalidInput):
		return dto.ErrorResponse{Code: "VALIDATION", Message: p.Sprintf(msgInvalid)}
	case errors.Is(err, domain.ErrRetryable):
		return dto.ErrorResponse{Code: "RETRY", Message: p.Sprintf(msgRetry)}
	}
	return dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()}
}

func describeStock(p *message.Printer, se *domain.StockError) string {
	switch se.Kind {
	case domain.KindVariantNotFound:
		return p.Sprintf(msgVariantNotFound, se.VariantID)
	case domain.KindProductNotFound:
		return p.Sprintf(msgProductNotFound, se.ProductID)
	case domain.KindInsufficientProductStock:
		return p.Sprintf(msgInsufficientProduct, se.Name, se.Requested.String(), se.Available.String())
	case domain.KindRawMaterialNotFound:
		return p.Sprintf(msgMaterialNotFound, se.RawMaterialID)
	case domain.KindInsufficientMaterialStock:
		return p.Sprintf(msgInsufficientMat, se.Name,
			se.Requested.String(), se.Unit, se.Available.String(), se.Unit)
	}
	return se.Error()
}

// ExitCode 0 éxito, 2 rechazo de negocio (stock, duplicado, estado, validación), 1 fallo técnico.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if _, ok := domain.AsStockError(err); ok {
		return 2
	}
	for _, target := range []error{domain.ErrDuplicate, domain.ErrConflict, domain.ErrNotFound, domain.ErrInvalidInput} {
		if errors.Is(err, target) {
			return 2
		}
	}
	return 1
}
