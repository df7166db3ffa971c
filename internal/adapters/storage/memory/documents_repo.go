package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"resource-api/internal/ports/docstore"
)

// documentStore guarda documentos JSON por índice. Cada documento se guarda
// normalizado (roundtrip JSON) para que nadie comparta maps con el store.
// Los maps guardados no se modifican nunca: las escrituras guardan un map
// nuevo, así Search puede leerlos después de soltar el lock.
type documentStore struct {
	mu      sync.RWMutex
	indexes map[string]map[string]docstore.Document
}

func NewDocumentStore() docstore.Store {
	return &documentStore{
		indexes: make(map[string]map[string]docstore.Document),
	}
}

func (s *documentStore) EnsureIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[index]; !ok {
		s.indexes[index] = make(map[string]docstore.Document)
	}
	return nil
}

func (s *documentStore) Get(ctx context.Context, index, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.indexes[index][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return clone(doc)
}

func (s *documentStore) Search(ctx context.Context, index string, req docstore.SearchRequest) (docstore.SearchResult, error) {
	s.mu.RLock()
	matched := make([]docstore.Document, 0)
	for _, doc := range s.indexes[index] {
		if !matchesQuery(doc, req.Query) || !matchesFilter(doc, req.Filter) {
			continue
		}
		matched = append(matched, doc)
	}
	s.mu.RUnlock()

	sortDocuments(matched, req.Sort)

	total := len(matched)
	from := req.From
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	to := total
	if req.Size > 0 && from+req.Size < total {
		to = from + req.Size
	}

	hits := make([]docstore.Document, 0, to-from)
	for _, doc := range matched[from:to] {
		cp, err := clone(doc)
		if err != nil {
			return docstore.SearchResult{}, err
		}
		hits = append(hits, cp)
	}
	return docstore.SearchResult{Hits: hits, Total: total}, nil
}

func (s *documentStore) Index(ctx context.Context, index, id string, doc docstore.Document) error {
	cp, err := clone(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[index]; !ok {
		s.indexes[index] = make(map[string]docstore.Document)
	}
	s.indexes[index][id] = cp
	return nil
}

func (s *documentStore) Update(ctx context.Context, index, id string, partial docstore.Document) error {
	cp, err := clone(partial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.indexes[index][id]
	if !ok {
		return docstore.ErrNotFound
	}
	next := make(docstore.Document, len(doc)+len(cp))
	for k, v := range doc {
		next[k] = v
	}
	for k, v := range cp {
		next[k] = v
	}
	s.indexes[index][id] = next
	return nil
}

func (s *documentStore) UpdateByQuery(ctx context.Context, index, field string, refID any, value any) (int, error) {
	normalized, err := normalize(value)
	if err != nil {
		return 0, err
	}
	ref, err := normalize(refID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cond := docstore.Condition{Field: field + ".id", Op: docstore.OpEq, Value: ref}
	docs := s.indexes[index]
	n := 0
	for id, doc := range docs {
		if !matchesCondition(doc, cond) {
			continue
		}
		v, _ := normalize(normalized)
		next := make(docstore.Document, len(doc))
		for k, old := range doc {
			next[k] = old
		}
		next[field] = v
		docs[id] = next
		n++
	}
	return n, nil
}

func (s *documentStore) Delete(ctx context.Context, index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[index][id]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.indexes[index], id)
	return nil
}

func (s *documentStore) Ping(ctx context.Context) error { return nil }

// ---------------------------------------------------------------------------

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory: marshal: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("memory: unmarshal: %w", err)
	}
	return out, nil
}

func clone(doc docstore.Document) (docstore.Document, error) {
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func matchesQuery(doc docstore.Document, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return containsText(doc, q)
}

func containsText(v any, q string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), q)
	case map[string]any:
		for _, child := range t {
			if containsText(child, q) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if containsText(child, q) {
				return true
			}
		}
	}
	return false
}

func matchesFilter(doc docstore.Document, f docstore.Filter) bool {
	for _, group := range f {
		if len(group) == 0 {
			continue
		}
		ok := false
		for _, cond := range group {
			if matchesCondition(doc, cond) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func matchesCondition(doc docstore.Document, cond docstore.Condition) bool {
	for _, v := range lookup(doc, strings.Split(cond.Field, ".")) {
		cmp, ok := compare(v, cond.Value)
		if !ok {
			if cond.Op == docstore.OpNeq {
				return true
			}
			continue
		}
		switch cond.Op {
		case docstore.OpEq:
			if cmp == 0 {
				return true
			}
		case docstore.OpNeq:
			if cmp != 0 {
				return true
			}
		case docstore.OpGt:
			if cmp > 0 {
				return true
			}
		case docstore.OpGte:
			if cmp >= 0 {
				return true
			}
		case docstore.OpLt:
			if cmp < 0 {
				return true
			}
		case docstore.OpLte:
			if cmp <= 0 {
				return true
			}
		}
	}
	return false
}

// lookup resuelve un path; los arrays intermedios se aplanan.
func lookup(v any, path []string) []any {
	if len(path) == 0 {
		if arr, ok := v.([]any); ok {
			return arr
		}
		return []any{v}
	}
	switch t := v.(type) {
	case map[string]any:
		child, ok := t[path[0]]
		if !ok {
			return nil
		}
		return lookup(child, path[1:])
	case []any:
		var out []any
		for _, el := range t {
			out = append(out, lookup(el, path)...)
		}
		return out
	}
	return nil
}

func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if ba == bb {
			return 0, true
		}
		return 1, true
	}
	if a == nil || b == nil {
		if a == b {
			return 0, true
		}
		return 0, false
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func sortDocuments(docs []docstore.Document, order []docstore.Sort) {
	if len(order) == 0 {
		// orden estable por id para que la paginación sea determinista
		order = []docstore.Sort{{Field: "id"}}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range order {
			path := strings.Split(o.Field, ".")
			a, b := first(lookup(docs[i], path)), first(lookup(docs[j], path))
			cmp, ok := compare(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func first(vs []any) any {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}
