package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrRetryable marca fallos transitorios del almacén (lock timeout, deadlock, serialización).
	// El lote completo puede reintentarse en una transacción nueva.
	ErrRetryable = errors.New("conflicto transitorio de concurrencia")
)
