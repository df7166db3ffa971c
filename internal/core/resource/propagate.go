package resource

import (
	"context"
	"fmt"

	"resource-api/internal/ports/docstore"
)

const propagatePage = 200

// propagate empuja el documento actualizado a cada recurso dependiente, en
// segundo plano. Cada dependiente es una tarea propia.
func (r *Resource) propagate(ctx context.Context, doc Document) {
	for _, d := range r.dependents {
		name := fmt.Sprintf("propagate %s -> %s.%s", r.index, d.resource.index, d.field)
		r.tasks.Go(ctx, name, func(ctx context.Context) error {
			n, err := d.push(ctx, doc)
			r.metrics.ObservePropagation(d.resource.index, d.field, n)
			if err != nil {
				return err
			}
			r.log.Debug("dependents updated", map[string]any{
				"target": d.resource.index,
				"field":  d.field,
				"id":     doc["id"],
				"count":  n,
			})
			return nil
		})
	}
}

// push actualiza todos los documentos de d.resource cuyo <field>.id coincide.
func (d dependent) push(ctx context.Context, doc Document) (int, error) {
	value := d.transform(doc)
	refID := doc["id"]
	target := d.resource

	if d.kind == objectField {
		n, err := target.store.UpdateByQuery(ctx, target.index, d.field, refID, value)
		if err != nil {
			return 0, err
		}
		// el store ya quedó bien; falta sacar las copias viejas de la cache
		err = target.eachReferencing(ctx, d.field, refID, func(ref Document) error {
			target.evictCache(ctx, FormatID(ref["id"]))
			return nil
		})
		return n, err
	}

	n := 0
	err := target.eachReferencing(ctx, d.field, refID, func(ref Document) error {
		items, _ := ref[d.field].([]any)
		replaced := make([]any, len(items))
		for i, item := range items {
			replaced[i] = item
			if m, ok := item.(map[string]any); ok && sameID(m["id"], refID) {
				replaced[i] = value
			}
		}

		id := FormatID(ref["id"])
		if err := target.store.Update(ctx, target.index, id, Document{d.field: replaced}); err != nil {
			return err
		}
		target.evictCache(ctx, id)
		n++
		return nil
	})
	return n, err
}

// eachReferencing recorre, paginado, los documentos con <field>.id = refID.
func (r *Resource) eachReferencing(ctx context.Context, field string, refID any, fn func(Document) error) error {
	filter := docstore.Eq(field+".id", refID)
	for from := 0; ; from += propagatePage {
		res, err := r.store.Search(ctx, r.index, docstore.SearchRequest{
			Filter: filter,
			Sort:   []docstore.Sort{{Field: "id"}},
			Size:   propagatePage,
			From:   from,
		})
		if err != nil {
			return err
		}
		for _, doc := range res.Hits {
			if err := fn(doc); err != nil {
				return err
			}
		}
		if len(res.Hits) < propagatePage {
			return nil
		}
	}
}

func sameID(a, b any) bool {
	return a != nil && b != nil && FormatID(a) == FormatID(b)
}
