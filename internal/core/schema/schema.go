// Package schema implementa validación estructural en runtime para documentos
// dinámicos (map[string]any): tipos, defaults, coerción y composición de
// objetos (merge, omit, partial). Cada schema sabe describirse como JSON
// Schema para la documentación OpenAPI.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema es un validador/parseador. Sólo los tipos de este paquete lo
// implementan.
type Schema interface {
	parse(v any, present bool, st *state, path []string) (out any, keep bool)

	// JSONSchema devuelve el fragmento JSON Schema equivalente.
	JSONSchema() map[string]any

	// Empty devuelve un valor vacío del mismo shape (para ejemplos/curl).
	Empty() any
}

type Options struct {
	// Coerce convierte strings (headers, query, params) a number/bool/time.
	Coerce bool
}

type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error lista todos los problemas encontrados en un parse.
type Error struct {
	Issues []Issue `json:"issues"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "schema: " + strings.Join(parts, "; ")
}

const (
	CodeRequired     = "required"
	CodeInvalidType  = "invalid_type"
	CodeTooSmall     = "too_small"
	CodeTooBig       = "too_big"
	CodeInvalidEnum  = "invalid_enum_value"
	CodeInvalidValue = "invalid_string"
	CodeInvalidUnion = "invalid_union"
)

type state struct {
	opts   Options
	issues []Issue
}

func (st *state) fail(path []string, code, format string, args ...any) {
	st.issues = append(st.issues, Issue{
		Path:    strings.Join(path, "."),
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// Parse valida v sin coerción.
func Parse(s Schema, v any) (any, error) {
	return ParseWith(s, v, Options{})
}

func ParseWith(s Schema, v any, opts Options) (any, error) {
	st := &state{opts: opts}
	out, keep := s.parse(v, true, st, nil)
	if len(st.issues) > 0 {
		return nil, &Error{Issues: st.issues}
	}
	if !keep {
		return nil, nil
	}
	return out, nil
}

// ParseObject es Parse para objetos, devolviendo el map ya tipado.
func ParseObject(o *ObjectSchema, v any, opts Options) (map[string]any, error) {
	out, err := ParseWith(o, v, opts)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func childPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := ToFloat(v); ok {
		return "number"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// ToFloat acepta cualquier tipo numérico de Go (y json.Number).
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asSlice normaliza []T a []any.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false // []byte no es un array JSON
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asMap normaliza map[string]T a map[string]any.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
