package schema

import (
	"sort"
	"strconv"
)

// Fields define el shape de un objeto.
type Fields map[string]Schema

// ObjectSchema valida map[string]any. Las keys desconocidas se descartan.
type ObjectSchema struct {
	fields      Fields
	description string
}

func Object(fields Fields) *ObjectSchema {
	cp := make(Fields, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &ObjectSchema{fields: cp}
}

func (o *ObjectSchema) clone() *ObjectSchema {
	return &ObjectSchema{fields: Object(o.fields).fields, description: o.description}
}

// Describe agrega una descripción para la documentación.
func (o *ObjectSchema) Describe(text string) *ObjectSchema {
	cp := o.clone()
	cp.description = text
	return cp
}

func (o *ObjectSchema) Field(name string) (Schema, bool) {
	s, ok := o.fields[name]
	return s, ok
}

// Keys devuelve los nombres de campo ordenados.
func (o *ObjectSchema) Keys() []string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge devuelve un objeto con los campos de ambos; other gana en conflicto.
func (o *ObjectSchema) Merge(other *ObjectSchema) *ObjectSchema {
	cp := o.clone()
	for k, v := range other.fields {
		cp.fields[k] = v
	}
	if other.description != "" {
		cp.description = other.description
	}
	return cp
}

func (o *ObjectSchema) Extend(fields Fields) *ObjectSchema {
	return o.Merge(Object(fields))
}

func (o *ObjectSchema) Omit(keys ...string) *ObjectSchema {
	cp := o.clone()
	for _, k := range keys {
		delete(cp.fields, k)
	}
	return cp
}

func (o *ObjectSchema) Pick(keys ...string) *ObjectSchema {
	cp := &ObjectSchema{fields: Fields{}, description: o.description}
	for _, k := range keys {
		if s, ok := o.fields[k]; ok {
			cp.fields[k] = s
		}
	}
	return cp
}

// Partial hace opcionales todos los campos (un default también pasa a ser
// opcional: un campo ausente queda ausente).
func (o *ObjectSchema) Partial() *ObjectSchema {
	cp := o.clone()
	for k, v := range cp.fields {
		if _, ok := v.(*optional); ok {
			continue
		}
		cp.fields[k] = Optional(v)
	}
	return cp
}

func (o *ObjectSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	in, ok := asMap(v)
	if !ok {
		st.fail(path, CodeInvalidType, "expected object, received %s", typeName(v))
		return nil, false
	}

	out := make(map[string]any, len(o.fields))
	before := len(st.issues)
	for _, key := range o.Keys() {
		raw, has := in[key]
		val, keep := o.fields[key].parse(raw, has, st, childPath(path, key))
		if keep {
			out[key] = val
		}
	}
	if len(st.issues) > before {
		return nil, false
	}
	return out, true
}

func (o *ObjectSchema) JSONSchema() map[string]any {
	props := map[string]any{}
	required := []any{}
	for _, key := range o.Keys() {
		f := o.fields[key]
		props[key] = f.JSONSchema()
		if !IsOptional(f) {
			required = append(required, key)
		}
	}
	out := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if o.description != "" {
		out["description"] = o.description
	}
	return out
}

func (o *ObjectSchema) Empty() any {
	out := map[string]any{}
	for k, f := range o.fields {
		out[k] = f.Empty()
	}
	return out
}

// ---------------------------------------------------------------------------
// Record

// RecordSchema es un map de keys arbitrarias con valores homogéneos.
type RecordSchema struct {
	value Schema
}

func Record(value Schema) *RecordSchema { return &RecordSchema{value: value} }

func (r *RecordSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	in, ok := asMap(v)
	if !ok {
		st.fail(path, CodeInvalidType, "expected object, received %s", typeName(v))
		return nil, false
	}
	out := make(map[string]any, len(in))
	before := len(st.issues)
	for k, raw := range in {
		val, keep := r.value.parse(raw, true, st, childPath(path, k))
		if keep {
			out[k] = val
		}
	}
	if len(st.issues) > before {
		return nil, false
	}
	return out, true
}

func (r *RecordSchema) JSONSchema() map[string]any {
	return map[string]any{"type": "object", "additionalProperties": r.value.JSONSchema()}
}

func (r *RecordSchema) Empty() any { return map[string]any{} }

// ---------------------------------------------------------------------------
// Array

type ArraySchema struct {
	elem     Schema
	min, max int
}

func Array(elem Schema) *ArraySchema { return &ArraySchema{elem: elem, min: -1, max: -1} }

func (a *ArraySchema) Min(n int) *ArraySchema {
	cp := *a
	cp.min = n
	return &cp
}

func (a *ArraySchema) Max(n int) *ArraySchema {
	cp := *a
	cp.max = n
	return &cp
}

// Elem devuelve el schema de los elementos.
func (a *ArraySchema) Elem() Schema { return a.elem }

func (a *ArraySchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	in, ok := asSlice(v)
	if !ok {
		st.fail(path, CodeInvalidType, "expected array, received %s", typeName(v))
		return nil, false
	}
	if a.min >= 0 && len(in) < a.min {
		st.fail(path, CodeTooSmall, "array must contain at least %d element(s)", a.min)
		return nil, false
	}
	if a.max >= 0 && len(in) > a.max {
		st.fail(path, CodeTooBig, "array must contain at most %d element(s)", a.max)
		return nil, false
	}

	out := make([]any, 0, len(in))
	before := len(st.issues)
	for i, raw := range in {
		val, keep := a.elem.parse(raw, true, st, childPath(path, strconv.Itoa(i)))
		if keep {
			out = append(out, val)
		}
	}
	if len(st.issues) > before {
		return nil, false
	}
	return out, true
}

func (a *ArraySchema) JSONSchema() map[string]any {
	out := map[string]any{"type": "array", "items": a.elem.JSONSchema()}
	if a.min >= 0 {
		out["minItems"] = a.min
	}
	if a.max >= 0 {
		out["maxItems"] = a.max
	}
	return out
}

func (a *ArraySchema) Empty() any { return []any{} }

// ---------------------------------------------------------------------------
// Union

// UnionSchema acepta el primer schema que valide sin errores.
type UnionSchema struct {
	options []Schema
}

func Union(options ...Schema) *UnionSchema {
	return &UnionSchema{options: append([]Schema{}, options...)}
}

func (u *UnionSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	for _, opt := range u.options {
		sub := &state{opts: st.opts}
		out, keep := opt.parse(v, true, sub, path)
		if len(sub.issues) == 0 {
			return out, keep
		}
	}
	st.fail(path, CodeInvalidUnion, "invalid input")
	return nil, false
}

func (u *UnionSchema) JSONSchema() map[string]any {
	opts := make([]any, len(u.options))
	for i, opt := range u.options {
		opts[i] = opt.JSONSchema()
	}
	return map[string]any{"anyOf": opts}
}

func (u *UnionSchema) Empty() any {
	if len(u.options) == 0 {
		return ""
	}
	return u.options[0].Empty()
}
