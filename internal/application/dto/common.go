package dto

// ErrorResponse cuerpo de error que el CLI imprime en JSON.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
