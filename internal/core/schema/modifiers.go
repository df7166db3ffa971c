package schema

import "encoding/json"

type optional struct{ inner Schema }

// Optional permite que el campo falte. Un null explícito también cuenta como
// ausente salvo que el schema interno sea Nullable.
func Optional(s Schema) Schema {
	if o, ok := s.(*optional); ok {
		return o
	}
	return &optional{inner: s}
}

func (o *optional) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		return nil, false
	}
	if v == nil {
		if _, ok := o.inner.(*nullable); !ok {
			return nil, false
		}
	}
	return o.inner.parse(v, true, st, path)
}

func (o *optional) JSONSchema() map[string]any { return o.inner.JSONSchema() }
func (o *optional) Empty() any                 { return o.inner.Empty() }

type nullable struct{ inner Schema }

// Nullable acepta null como valor válido.
func Nullable(s Schema) Schema {
	if n, ok := s.(*nullable); ok {
		return n
	}
	return &nullable{inner: s}
}

func (n *nullable) parse(v any, present bool, st *state, path []string) (any, bool) {
	if present && v == nil {
		return nil, true
	}
	return n.inner.parse(v, present, st, path)
}

func (n *nullable) JSONSchema() map[string]any {
	return map[string]any{"anyOf": []any{n.inner.JSONSchema(), map[string]any{"type": "null"}}}
}

func (n *nullable) Empty() any { return n.inner.Empty() }

// Nullish = Optional(Nullable(s)).
func Nullish(s Schema) Schema { return Optional(Nullable(s)) }

type withDefault struct {
	inner Schema
	value any
}

// Default completa el campo cuando falta o es null. Si value es una
// func() any, se evalúa en cada parse (p.ej. fechas relativas a "ahora").
func Default(s Schema, value any) Schema {
	return &withDefault{inner: s, value: value}
}

func (d *withDefault) defaultValue() any {
	if fn, ok := d.value.(func() any); ok {
		return fn()
	}
	return deepCopy(d.value)
}

func (d *withDefault) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present || v == nil {
		return d.inner.parse(d.defaultValue(), true, st, path)
	}
	return d.inner.parse(v, true, st, path)
}

func (d *withDefault) JSONSchema() map[string]any {
	out := map[string]any{}
	for k, v := range d.inner.JSONSchema() {
		out[k] = v
	}
	if _, isFunc := d.value.(func() any); !isFunc {
		out["default"] = d.value
	}
	return out
}

func (d *withDefault) Empty() any { return d.defaultValue() }

// Unwrap quita Optional/Nullable/Default y devuelve el schema base.
func Unwrap(s Schema) Schema {
	for {
		switch t := s.(type) {
		case *optional:
			s = t.inner
		case *nullable:
			s = t.inner
		case *withDefault:
			s = t.inner
		default:
			return s
		}
	}
}

// IsOptional indica si el campo puede omitirse en el input.
func IsOptional(s Schema) bool {
	switch s.(type) {
	case *optional, *withDefault:
		return true
	}
	return false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return v
		}
		return out
	}
	return v
}
