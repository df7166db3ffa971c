package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Tipos de error expuestos en el campo "type".
const (
	TypeValidation = "validation"
	TypeStore      = "store"
	TypeUnknown    = "unknown"
)

// Error es el error que cruza la frontera HTTP. Todo lo demás se convierte en
// un 500 genérico.
type Error struct {
	Status  int
	Message string
	Type    string
	Details any

	cause error
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func BadRequest(message string) *Error   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }
func NotFound(message string) *Error     { return New(http.StatusNotFound, message) }
func Internal(message string) *Error     { return New(http.StatusInternalServerError, message) }

// WithType devuelve una copia con el tipo y detalles dados.
func (e *Error) WithType(typ string, details any) *Error {
	cp := *e
	cp.Type = typ
	cp.Details = details
	return &cp
}

// Wrap guarda la causa interna (se loguea, nunca se serializa).
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Body es el envelope de error.
func (e *Error) Body() map[string]any {
	body := map[string]any{
		"error":   true,
		"message": e.Message,
		"status":  e.Status,
	}
	if e.Type != "" {
		body["type"] = e.Type
	}
	if e.Details != nil {
		body["details"] = e.Details
	}
	return body
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Body())
}

// As extrae un *Error de la cadena de err.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// From convierte cualquier error en *Error; lo desconocido es un 500.
func From(err error) *Error {
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return Internal("unexpected server error").WithType(TypeUnknown, nil).Wrap(err)
}

// Write serializa err como envelope JSON con el status correspondiente.
func Write(w http.ResponseWriter, err error) {
	apiErr := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr.Body())
}
