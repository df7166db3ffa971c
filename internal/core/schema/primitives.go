package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ---------------------------------------------------------------------------
// String

type StringSchema struct {
	min, max int // -1 = sin límite
	formats  []string
}

func String() *StringSchema {
	return &StringSchema{min: -1, max: -1}
}

func (s *StringSchema) Min(n int) *StringSchema {
	cp := *s
	cp.min = n
	return &cp
}

func (s *StringSchema) Max(n int) *StringSchema {
	cp := *s
	cp.max = n
	return &cp
}

// Format agrega un tag de go-playground/validator (email, uuid, url, ...).
func (s *StringSchema) Format(tag string) *StringSchema {
	cp := *s
	cp.formats = append(append([]string{}, s.formats...), tag)
	return &cp
}

func (s *StringSchema) Email() *StringSchema { return s.Format("email") }

func (s *StringSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}

	str, ok := v.(string)
	if !ok && st.opts.Coerce && v != nil {
		switch t := v.(type) {
		case bool:
			str, ok = strconv.FormatBool(t), true
		default:
			if f, isNum := ToFloat(v); isNum {
				str, ok = formatFloat(f), true
			}
		}
	}
	if !ok {
		st.fail(path, CodeInvalidType, "expected string, received %s", typeName(v))
		return nil, false
	}

	n := len([]rune(str))
	if s.min >= 0 && n < s.min {
		st.fail(path, CodeTooSmall, "string must contain at least %d character(s)", s.min)
		return nil, false
	}
	if s.max >= 0 && n > s.max {
		st.fail(path, CodeTooBig, "string must contain at most %d character(s)", s.max)
		return nil, false
	}
	for _, tag := range s.formats {
		if err := validate.Var(str, tag); err != nil {
			st.fail(path, CodeInvalidValue, "invalid %s", tag)
			return nil, false
		}
	}
	return str, true
}

func (s *StringSchema) JSONSchema() map[string]any {
	out := map[string]any{"type": "string"}
	if s.min >= 0 {
		out["minLength"] = s.min
	}
	if s.max >= 0 {
		out["maxLength"] = s.max
	}
	if len(s.formats) == 1 {
		out["format"] = s.formats[0]
	}
	return out
}

func (s *StringSchema) Empty() any { return "" }

// ---------------------------------------------------------------------------
// Number

type NumberSchema struct {
	integer  bool
	min, max *float64
}

func Number() *NumberSchema { return &NumberSchema{} }

// Int es un Number que sólo acepta enteros.
func Int() *NumberSchema { return &NumberSchema{integer: true} }

func (s *NumberSchema) Min(f float64) *NumberSchema {
	cp := *s
	cp.min = &f
	return &cp
}

func (s *NumberSchema) Max(f float64) *NumberSchema {
	cp := *s
	cp.max = &f
	return &cp
}

func (s *NumberSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}

	f, ok := ToFloat(v)
	if !ok && st.opts.Coerce {
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			f, ok = parsed, err == nil
		}
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		st.fail(path, CodeInvalidType, "expected number, received %s", typeName(v))
		return nil, false
	}

	if s.integer && math.Trunc(f) != f {
		st.fail(path, CodeInvalidType, "expected integer, received float")
		return nil, false
	}
	if s.min != nil && f < *s.min {
		st.fail(path, CodeTooSmall, "number must be greater than or equal to %s", formatFloat(*s.min))
		return nil, false
	}
	if s.max != nil && f > *s.max {
		st.fail(path, CodeTooBig, "number must be less than or equal to %s", formatFloat(*s.max))
		return nil, false
	}
	return f, true
}

func (s *NumberSchema) JSONSchema() map[string]any {
	out := map[string]any{"type": "number"}
	if s.integer {
		out["type"] = "integer"
	}
	if s.min != nil {
		out["minimum"] = *s.min
	}
	if s.max != nil {
		out["maximum"] = *s.max
	}
	return out
}

func (s *NumberSchema) Empty() any { return 0 }

// IsInteger indica si el schema (sin modificadores) es un entero.
func (s *NumberSchema) IsInteger() bool { return s.integer }

// ---------------------------------------------------------------------------
// Boolean

type BooleanSchema struct{}

func Boolean() *BooleanSchema { return &BooleanSchema{} }

func (s *BooleanSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	if b, ok := v.(bool); ok {
		return b, true
	}
	if st.opts.Coerce {
		if str, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
				return b, true
			}
		}
	}
	st.fail(path, CodeInvalidType, "expected boolean, received %s", typeName(v))
	return nil, false
}

func (s *BooleanSchema) JSONSchema() map[string]any { return map[string]any{"type": "boolean"} }

func (s *BooleanSchema) Empty() any { return false }

// ---------------------------------------------------------------------------
// Time

// TimeSchema acepta time.Time, strings RFC3339 y milisegundos unix; siempre
// coerciona porque las fechas llegan como string en JSON.
type TimeSchema struct{}

func Time() *TimeSchema { return &TimeSchema{} }

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func (s *TimeSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		str := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, str); err == nil {
				return parsed, true
			}
		}
		st.fail(path, CodeInvalidType, "invalid date")
		return nil, false
	default:
		if ms, ok := ToFloat(v); ok {
			return time.UnixMilli(int64(ms)).UTC(), true
		}
	}
	st.fail(path, CodeInvalidType, "expected date, received %s", typeName(v))
	return nil, false
}

func (s *TimeSchema) JSONSchema() map[string]any {
	return map[string]any{"type": "string", "format": "date-time"}
}

func (s *TimeSchema) Empty() any { return "" }

// ---------------------------------------------------------------------------
// Enum

type EnumSchema struct {
	values []string
}

func Enum(values ...string) *EnumSchema {
	return &EnumSchema{values: append([]string{}, values...)}
}

func (s *EnumSchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		st.fail(path, CodeRequired, "required")
		return nil, false
	}
	str, ok := v.(string)
	if !ok {
		st.fail(path, CodeInvalidType, "expected string, received %s", typeName(v))
		return nil, false
	}
	for _, allowed := range s.values {
		if str == allowed {
			return str, true
		}
	}
	st.fail(path, CodeInvalidEnum, "invalid enum value, expected %s", strings.Join(s.values, " | "))
	return nil, false
}

func (s *EnumSchema) JSONSchema() map[string]any {
	vals := make([]any, len(s.values))
	for i, v := range s.values {
		vals[i] = v
	}
	return map[string]any{"type": "string", "enum": vals}
}

func (s *EnumSchema) Empty() any {
	if len(s.values) == 0 {
		return ""
	}
	return s.values[0]
}

// ---------------------------------------------------------------------------
// Any

type AnySchema struct{}

func Any() *AnySchema { return &AnySchema{} }

func (s *AnySchema) parse(v any, present bool, st *state, path []string) (any, bool) {
	if !present {
		return nil, false
	}
	return v, true
}

func (s *AnySchema) JSONSchema() map[string]any { return map[string]any{} }

func (s *AnySchema) Empty() any { return "" }
