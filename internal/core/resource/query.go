package resource

import (
	"fmt"
	"strconv"
	"strings"

	"resource-api/internal/ports/docstore"
)

// operadores ordenados para que ">=" gane sobre ">"
var filterOps = []docstore.Op{
	docstore.OpGte, docstore.OpLte, docstore.OpNeq,
	docstore.OpEq, docstore.OpGt, docstore.OpLt,
}

// ParseFilter traduce entradas "path op valor". Un string es una condición;
// una lista de strings es un grupo OR. Entre entradas es AND.
func ParseFilter(entries []any) (docstore.Filter, error) {
	out := make(docstore.Filter, 0, len(entries))
	for i, e := range entries {
		switch v := e.(type) {
		case string:
			cond, err := ParseCondition(v)
			if err != nil {
				return nil, fmt.Errorf("filter[%d]: %w", i, err)
			}
			out = append(out, []docstore.Condition{cond})
		case []any:
			group := make([]docstore.Condition, 0, len(v))
			for j, raw := range v {
				s, ok := raw.(string)
				if !ok {
					return nil, fmt.Errorf("filter[%d][%d]: expected string", i, j)
				}
				cond, err := ParseCondition(s)
				if err != nil {
					return nil, fmt.Errorf("filter[%d][%d]: %w", i, j, err)
				}
				group = append(group, cond)
			}
			out = append(out, group)
		case []string:
			group := make([]any, len(v))
			for j, s := range v {
				group[j] = s
			}
			sub, err := ParseFilter([]any{group})
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		default:
			return nil, fmt.Errorf("filter[%d]: expected string or list of strings", i)
		}
	}
	return out, nil
}

// ParseCondition parsea "author.id = 3", "name != 'Ada Lovelace'", "rank>=2".
func ParseCondition(s string) (docstore.Condition, error) {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		for _, op := range filterOps {
			if !strings.HasPrefix(s[i:], string(op)) {
				continue
			}
			field := strings.TrimSpace(s[:i])
			raw := strings.TrimSpace(s[i+len(op):])
			if field == "" || strings.ContainsAny(field, " \t") {
				return docstore.Condition{}, fmt.Errorf("invalid field in %q", s)
			}
			if raw == "" {
				return docstore.Condition{}, fmt.Errorf("missing value in %q", s)
			}
			return docstore.Condition{Field: field, Op: op, Value: filterValue(raw)}, nil
		}
	}
	return docstore.Condition{}, fmt.Errorf("missing operator in %q", s)
}

func filterValue(raw string) any {
	if len(raw) >= 2 {
		if q := raw[0]; (q == '"' || q == '\'') && raw[len(raw)-1] == q {
			return raw[1 : len(raw)-1]
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// ParseSort parsea "campo:asc" / "campo:desc" (asc por defecto).
func ParseSort(entries []string) ([]docstore.Sort, error) {
	out := make([]docstore.Sort, 0, len(entries))
	for _, e := range entries {
		field, dir, _ := strings.Cut(strings.TrimSpace(e), ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid sort %q", e)
		}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			out = append(out, docstore.Sort{Field: field})
		case "desc":
			out = append(out, docstore.Sort{Field: field, Desc: true})
		default:
			return nil, fmt.Errorf("invalid sort direction in %q", e)
		}
	}
	return out, nil
}
