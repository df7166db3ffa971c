package docstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("docstore: document not found")

// Document es un documento JSON ya validado.
type Document = map[string]any

// Op es un operador de comparación en filtros.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Condition compara el valor en Field (path con puntos) contra Value.
// Si el path atraviesa un array, alcanza con que un elemento cumpla.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter es un AND de grupos OR.
type Filter [][]Condition

// Eq arma un filtro de una sola condición de igualdad.
func Eq(field string, value any) Filter {
	return Filter{{{Field: field, Op: OpEq, Value: value}}}
}

type Sort struct {
	Field string
	Desc  bool
}

type SearchRequest struct {
	Query  string // full-text; vacío = todos
	Filter Filter
	Sort   []Sort
	Size   int
	From   int
}

type SearchResult struct {
	Hits  []Document
	Total int
}

// Store es el document store externo. Los ids siempre viajan como string.
type Store interface {
	// EnsureIndex crea el índice/colección si no existe (idempotente).
	EnsureIndex(ctx context.Context, index string) error

	Get(ctx context.Context, index, id string) (Document, error)
	Search(ctx context.Context, index string, req SearchRequest) (SearchResult, error)

	// Index crea o reemplaza el documento completo.
	Index(ctx context.Context, index, id string, doc Document) error

	// Update mergea (shallow) partial sobre el documento existente.
	// ErrNotFound si no existe.
	Update(ctx context.Context, index, id string, partial Document) error

	// UpdateByQuery setea field = value en todos los documentos donde
	// field.id == refID. Devuelve cuántos se actualizaron.
	UpdateByQuery(ctx context.Context, index, field string, refID any, value any) (int, error)

	Delete(ctx context.Context, index, id string) error

	Ping(ctx context.Context) error
}
