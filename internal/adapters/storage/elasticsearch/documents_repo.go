package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"resource-api/internal/platform/httpclient"
	"resource-api/internal/ports/docstore"

	"github.com/tidwall/gjson"
)

// DocumentsRepo habla con Elasticsearch por su API REST. Las respuestas se
// leen por path con gjson.
type DocumentsRepo struct {
	client *httpclient.Client
}

func NewDocumentsRepo(client *httpclient.Client) *DocumentsRepo {
	return &DocumentsRepo{client: client}
}

// indexMappings deja a todo string como text con un subcampo keyword; los
// filtros por igualdad sobre strings van contra <campo>.keyword.
var indexMappings = map[string]any{
	"mappings": map[string]any{
		"dynamic_templates": []any{
			map[string]any{"strings": map[string]any{
				"match_mapping_type": "string",
				"mapping": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
					},
				},
			}},
		},
	},
}

func (r *DocumentsRepo) EnsureIndex(ctx context.Context, index string) error {
	raw, err := r.client.Do(ctx, http.MethodPut, "/"+url.PathEscape(index), indexMappings)
	if err == nil {
		return nil
	}
	if httpclient.IsStatus(err, http.StatusBadRequest) &&
		gjson.GetBytes(raw, "error.type").String() == "resource_already_exists_exception" {
		return nil
	}
	return fmt.Errorf("elasticsearch: create index %s: %w", index, err)
}

func (r *DocumentsRepo) Get(ctx context.Context, index, id string) (docstore.Document, error) {
	raw, err := r.client.Do(ctx, http.MethodGet, docPath(index, "_doc", id), nil)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("elasticsearch: get %s/%s: %w", index, id, err)
	}
	return decode(gjson.GetBytes(raw, "_source"))
}

func (r *DocumentsRepo) Search(ctx context.Context, index string, req docstore.SearchRequest) (docstore.SearchResult, error) {
	size := req.Size
	if size <= 0 {
		size = 20
	}

	body := map[string]any{
		"query":            buildQuery(req),
		"size":             size,
		"from":             max(req.From, 0),
		"track_total_hits": true,
	}
	if len(req.Sort) > 0 {
		sort := make([]any, 0, len(req.Sort))
		for _, s := range req.Sort {
			order := "asc"
			if s.Desc {
				order = "desc"
			}
			sort = append(sort, map[string]any{s.Field: map[string]any{"order": order, "unmapped_type": "keyword"}})
		}
		body["sort"] = sort
	}

	raw, err := r.client.Do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return docstore.SearchResult{Hits: make([]docstore.Document, 0)}, nil
		}
		return docstore.SearchResult{}, fmt.Errorf("elasticsearch: search %s: %w", index, err)
	}

	out := docstore.SearchResult{
		Hits:  make([]docstore.Document, 0),
		Total: int(gjson.GetBytes(raw, "hits.total.value").Int()),
	}
	for _, src := range gjson.GetBytes(raw, "hits.hits.#._source").Array() {
		doc, err := decode(src)
		if err != nil {
			return docstore.SearchResult{}, err
		}
		out.Hits = append(out.Hits, doc)
	}
	return out, nil
}

func (r *DocumentsRepo) Index(ctx context.Context, index, id string, doc docstore.Document) error {
	_, err := r.client.Do(ctx, http.MethodPut, docPath(index, "_doc", id)+"?refresh=wait_for", doc)
	if err != nil {
		return fmt.Errorf("elasticsearch: index %s/%s: %w", index, id, err)
	}
	return nil
}

func (r *DocumentsRepo) Update(ctx context.Context, index, id string, partial docstore.Document) error {
	_, err := r.client.Do(ctx, http.MethodPost, docPath(index, "_update", id)+"?refresh=wait_for",
		map[string]any{"doc": partial})
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return docstore.ErrNotFound
		}
		return fmt.Errorf("elasticsearch: update %s/%s: %w", index, id, err)
	}
	return nil
}

func (r *DocumentsRepo) UpdateByQuery(ctx context.Context, index, field string, refID any, value any) (int, error) {
	body := map[string]any{
		"query": map[string]any{
			"term": map[string]any{exactField(field+".id", refID): refID},
		},
		"script": map[string]any{
			"lang":   "painless",
			"source": "ctx._source[params.field] = params.value",
			"params": map[string]any{"field": field, "value": value},
		},
	}

	raw, err := r.client.Do(ctx, http.MethodPost,
		"/"+url.PathEscape(index)+"/_update_by_query?refresh=true&conflicts=proceed", body)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch: update_by_query %s: %w", index, err)
	}
	return int(gjson.GetBytes(raw, "updated").Int()), nil
}

func (r *DocumentsRepo) Delete(ctx context.Context, index, id string) error {
	_, err := r.client.Do(ctx, http.MethodDelete, docPath(index, "_doc", id)+"?refresh=wait_for", nil)
	if err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return docstore.ErrNotFound
		}
		return fmt.Errorf("elasticsearch: delete %s/%s: %w", index, id, err)
	}
	return nil
}

func (r *DocumentsRepo) Ping(ctx context.Context) error {
	_, err := r.client.Do(ctx, http.MethodGet, "/", nil)
	return err
}

// ---------------------------------------------------------------------------

func docPath(index, endpoint, id string) string {
	return "/" + url.PathEscape(index) + "/" + endpoint + "/" + url.PathEscape(id)
}

func decode(src gjson.Result) (docstore.Document, error) {
	if !src.Exists() || !src.IsObject() {
		return nil, errors.New("elasticsearch: missing _source")
	}
	var doc docstore.Document
	if err := json.Unmarshal([]byte(src.Raw), &doc); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode _source: %w", err)
	}
	return doc, nil
}

var rangeOps = map[docstore.Op]string{
	docstore.OpGt:  "gt",
	docstore.OpGte: "gte",
	docstore.OpLt:  "lt",
	docstore.OpLte: "lte",
}

// buildQuery arma un bool query: query_string para q y un should por grupo OR.
func buildQuery(req docstore.SearchRequest) map[string]any {
	must := make([]any, 0, 1)
	if q := strings.TrimSpace(req.Query); q != "" {
		must = append(must, map[string]any{
			"query_string": map[string]any{"query": q, "default_operator": "AND"},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := make([]any, 0, len(req.Filter))
	for _, group := range req.Filter {
		if len(group) == 0 {
			continue
		}
		should := make([]any, 0, len(group))
		for _, cond := range group {
			should = append(should, condition(cond))
		}
		filter = append(filter, map[string]any{
			"bool": map[string]any{"should": should, "minimum_should_match": 1},
		})
	}

	return map[string]any{
		"bool": map[string]any{"must": must, "filter": filter},
	}
}

func condition(cond docstore.Condition) map[string]any {
	field := exactField(cond.Field, cond.Value)
	switch cond.Op {
	case docstore.OpEq:
		return map[string]any{"term": map[string]any{field: cond.Value}}
	case docstore.OpNeq:
		return map[string]any{"bool": map[string]any{
			"must_not": []any{map[string]any{"term": map[string]any{field: cond.Value}}},
		}}
	}
	return map[string]any{"range": map[string]any{
		field: map[string]any{rangeOps[cond.Op]: cond.Value},
	}}
}

// exactField: los strings se comparan contra el subcampo keyword, el text
// está analizado ("ada@example.com" se parte en tokens).
func exactField(field string, value any) string {
	if _, ok := value.(string); ok {
		return field + ".keyword"
	}
	return field
}
