package resource

import (
	"context"
	"encoding/json"
	"errors"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/schema"
	"resource-api/internal/ports/docstore"
)

type GetProps struct {
	ID    any
	Cache bool
}

type SearchProps struct {
	Query  string
	Filter []any
	Sort   []string
	Limit  int
	Offset int
}

type UpdateProps struct {
	ID   any
	Data map[string]any
}

type DeleteProps struct {
	ID any
}

type BulkResult struct {
	Created int
	Errors  int
}

func superCtx(ctx context.Context) context.Context {
	return apicontext.With(ctx, apicontext.SuperUser())
}

// ---------------------------------------------------------------------------
// get

func (r *Resource) Get(ctx context.Context, p GetProps) (Document, error) {
	if r.cfg.Hooks.OnGet != nil {
		return r.cfg.Hooks.OnGet(superCtx(ctx), p, r.get)
	}
	return r.get(ctx, p)
}

func (r *Resource) get(ctx context.Context, p GetProps) (Document, error) {
	doc, cached, err := r.load(ctx, FormatID(p.ID), p.Cache)
	r.metrics.ObserveOperation(r.index, "get", err)
	if err != nil {
		return nil, err
	}

	out := r.redact(doc)
	out["_cache"] = cached
	out["_index"] = r.index
	return out, nil
}

// Lookup devuelve el documento sin redactar (para uso interno: auth, login).
func (r *Resource) Lookup(ctx context.Context, id any) (Document, error) {
	doc, _, err := r.load(ctx, FormatID(id), true)
	return doc, err
}

// load es el cache-aside: cache (si useCache), si no store + refresh en
// segundo plano.
func (r *Resource) load(ctx context.Context, id string, useCache bool) (Document, bool, error) {
	if useCache {
		if doc, ok := r.fromCache(ctx, id); ok {
			return doc, true, nil
		}
	}

	raw, err := r.store.Get(ctx, r.index, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, false, apierror.NotFound("not found")
	}
	if err != nil {
		return nil, false, r.storeError("get", err)
	}

	doc, err := schema.ParseObject(r.shape, raw, schema.Options{})
	if err != nil {
		r.log.Error("stored document is malformed", map[string]any{"id": id, "err": err})
		return nil, false, apierror.Internal("stored document is malformed").WithType(apierror.TypeValidation, issues(err))
	}

	r.refreshCache(ctx, id, doc)
	return doc, false, nil
}

func (r *Resource) fromCache(ctx context.Context, id string) (Document, bool) {
	if r.cache == nil {
		return nil, false
	}
	key := r.cacheKey(id)

	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("cache read failed", map[string]any{"key": key, "err": err})
		r.metrics.ObserveCache(r.index, "error")
		return nil, false
	}
	if !ok {
		r.metrics.ObserveCache(r.index, "miss")
		return nil, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		doc, err := schema.ParseObject(r.shape, decoded, schema.Options{})
		if err == nil {
			r.metrics.ObserveCache(r.index, "hit")
			return doc, true
		}
	}

	// entrada corrupta: se descarta y cuenta como miss
	r.log.Warn("cached document is malformed, evicting", map[string]any{"key": key})
	r.metrics.ObserveCache(r.index, "invalid")
	if err := r.cache.Del(ctx, key); err != nil {
		r.log.Warn("cache evict failed", map[string]any{"key": key, "err": err})
	}
	return nil, false
}

// refreshCache escribe doc en el cache en segundo plano. Las escrituras de un
// recurso se serializan y nunca pisan una versión más nueva: un get que leyó
// el store antes de un update no puede dejar el documento viejo en el cache.
func (r *Resource) refreshCache(ctx context.Context, id string, doc Document) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		r.log.Warn("cache encode failed", map[string]any{"id": id, "err": err})
		return
	}
	version, _ := schema.ToFloat(doc["version"])
	key := r.cacheKey(id)
	r.tasks.Go(ctx, "cache refresh "+key, func(ctx context.Context) error {
		r.cacheMu.Lock()
		defer r.cacheMu.Unlock()

		if newer, ok := r.cacheVersions[key]; ok && newer > version {
			return nil
		}
		if cached, ok := r.cachedVersion(ctx, key); ok && cached > version {
			r.cacheVersions[key] = cached
			return nil
		}
		if err := r.cache.Set(ctx, key, string(raw)); err != nil {
			return err
		}
		r.cacheVersions[key] = version
		return nil
	})
}

// cachedVersion lee la versión de la entrada actual (otra instancia pudo
// haberla escrito).
func (r *Resource) cachedVersion(ctx context.Context, key string) (float64, bool) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return 0, false
	}
	var entry struct {
		Version *float64 `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Version == nil {
		return 0, false
	}
	return *entry.Version, true
}

func (r *Resource) evictCache(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	key := r.cacheKey(id)

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	delete(r.cacheVersions, key)
	if err := r.cache.Del(ctx, key); err != nil {
		r.log.Warn("cache evict failed", map[string]any{"key": key, "err": err})
	}
}

// ---------------------------------------------------------------------------
// search

func (r *Resource) Search(ctx context.Context, p SearchProps) (Document, error) {
	filter, err := ParseFilter(p.Filter)
	if err != nil {
		return nil, apierror.BadRequest("filter is invalid").WithType(apierror.TypeValidation, err.Error())
	}
	sort, err := ParseSort(p.Sort)
	if err != nil {
		return nil, apierror.BadRequest("sort is invalid").WithType(apierror.TypeValidation, err.Error())
	}

	res, err := r.store.Search(ctx, r.index, docstore.SearchRequest{
		Query:  p.Query,
		Filter: filter,
		Sort:   sort,
		Size:   p.Limit,
		From:   p.Offset,
	})
	r.metrics.ObserveOperation(r.index, "search", err)
	if err != nil {
		return nil, r.storeError("search", err)
	}

	hits := make([]any, 0, len(res.Hits))
	for _, doc := range res.Hits {
		hits = append(hits, r.redact(doc))
	}
	return Document{"hits": hits, "total": res.Total}, nil
}

// ---------------------------------------------------------------------------
// create / update

// Create asigna id y envelope inicial y delega en Update. Un version en data
// se ignora.
func (r *Resource) Create(ctx context.Context, data map[string]any) (Document, error) {
	id := r.newID()

	stamped := make(map[string]any, len(data)+1)
	for k, v := range data {
		stamped[k] = v
	}
	delete(stamped, "version")
	stamped["id"] = id

	return r.Update(ctx, UpdateProps{ID: id, Data: stamped})
}

// BulkCreate crea cada documento por separado; los que fallan se cuentan.
func (r *Resource) BulkCreate(ctx context.Context, items []map[string]any) (BulkResult, error) {
	if len(items) > MaxBulk {
		return BulkResult{}, apierror.BadRequest("too many documents")
	}
	var out BulkResult
	for i, data := range items {
		if _, err := r.Create(ctx, data); err != nil {
			r.log.Warn("bulk create item failed", map[string]any{"item": i, "err": err})
			out.Errors++
			continue
		}
		out.Created++
	}
	return out, nil
}

func (r *Resource) Update(ctx context.Context, p UpdateProps) (Document, error) {
	if r.cfg.Hooks.OnUpdate != nil {
		return r.cfg.Hooks.OnUpdate(superCtx(ctx), p, r.update)
	}
	return r.update(ctx, p)
}

func (r *Resource) update(ctx context.Context, p UpdateProps) (Document, error) {
	id := FormatID(p.ID)

	// el documento previo se lee crudo: si no, los secretos redactados
	// pisarían el valor guardado
	prev, err := r.store.Get(ctx, r.index, id)
	if errors.Is(err, docstore.ErrNotFound) {
		prev = nil
	} else if err != nil {
		return nil, r.storeError("update", err)
	}

	prevVersion, hasPrevVersion := schema.ToFloat(prev["version"])
	if v, ok := p.Data["version"]; ok && v != nil && hasPrevVersion {
		next, _ := schema.ToFloat(v)
		if next <= prevVersion {
			return nil, apierror.BadRequest("version is smaller or equal to documents actual version")
		}
	}

	now := r.now().UTC()
	merged := make(map[string]any, len(prev)+len(p.Data)+4)
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range p.Data {
		merged[k] = v
	}
	merged["id"] = p.ID
	merged["updatedAt"] = now
	merged["createdAt"] = now
	if created, ok := prev["createdAt"]; ok && created != nil {
		merged["createdAt"] = created
	}
	merged["version"] = prevVersion + 1

	doc, err := schema.ParseObject(r.shape, merged, schema.Options{})
	if err != nil {
		return nil, apierror.BadRequest("document is invalid").WithType(apierror.TypeValidation, issues(err))
	}

	err = r.store.Index(ctx, r.index, id, doc)
	r.metrics.ObserveOperation(r.index, "update", err)
	if err != nil {
		return nil, r.storeError("update", err)
	}

	r.refreshCache(ctx, id, doc)
	r.propagate(ctx, doc)

	out := r.redact(doc)
	out["_index"] = r.index
	return out, nil
}

// ---------------------------------------------------------------------------
// delete

func (r *Resource) Delete(ctx context.Context, p DeleteProps) (Document, error) {
	if r.cfg.Hooks.OnDelete != nil {
		original, err := r.store.Get(ctx, r.index, FormatID(p.ID))
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apierror.NotFound("not found")
		}
		if err != nil {
			return nil, r.storeError("delete", err)
		}
		return r.cfg.Hooks.OnDelete(superCtx(ctx), p, original, r.delete)
	}
	return r.delete(ctx, p)
}

func (r *Resource) delete(ctx context.Context, p DeleteProps) (Document, error) {
	id := FormatID(p.ID)

	err := r.store.Delete(ctx, r.index, id)
	r.metrics.ObserveOperation(r.index, "delete", err)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apierror.NotFound("not found")
	}
	if err != nil {
		return nil, r.storeError("delete", err)
	}

	r.evictCache(ctx, id)
	return Document{"_index": r.index, "id": p.ID, "success": true}, nil
}

// ---------------------------------------------------------------------------

// storeError loguea el detalle y devuelve un 500 genérico.
func (r *Resource) storeError(op string, err error) error {
	r.log.Error("document store failed", map[string]any{"op": op, "index": r.index, "err": err})
	return apierror.Internal("unexpected server error").WithType(apierror.TypeStore, nil).Wrap(err)
}

func issues(err error) any {
	var se *schema.Error
	if errors.As(err, &se) {
		return se.Issues
	}
	return err.Error()
}
