package resource

import (
	"context"
	"net/http"

	"resource-api/internal/core/handler"
	"resource-api/internal/core/permissions"
	"resource-api/internal/core/schema"
)

// Handlers son los endpoints estándar de un recurso.
type Handlers struct {
	Get        *handler.Handler
	Search     *handler.Handler
	Create     *handler.Handler
	Update     *handler.Handler
	Delete     *handler.Handler
	BulkCreate *handler.Handler
}

// All devuelve los handlers en orden de montaje. /_search y /_bulk van antes
// que /{id} para que chi no los tome como id.
func (h Handlers) All() []*handler.Handler {
	return []*handler.Handler{h.Search, h.BulkCreate, h.Create, h.Get, h.Update, h.Delete}
}

type HandlerOptions struct {
	// Module es el prefijo de permisos y ruta ("user.user").
	Module string

	// CreateSchema reemplaza el schema del data de create/update
	// (p.ej. para omitir campos derivados). nil = el del recurso.
	CreateSchema *schema.ObjectSchema

	// BeforeCreate transforma data antes de crear.
	BeforeCreate func(ctx context.Context, data map[string]any) (map[string]any, error)
	// BeforeUpdate transforma data antes de actualizar.
	BeforeUpdate func(ctx context.Context, id any, data map[string]any) (map[string]any, error)

	// Permissions pisa los permisos por operación ("get", "search",
	// "create", "update", "delete", "bulk").
	Permissions map[string]permissions.Definition

	// SearchLocations pisa dónde se lee cada prop de búsqueda.
	SearchLocations map[string]handler.Location

	// Dependencies se agregan a create y update.
	Dependencies func() map[string]*handler.Handler
}

var defaultPermissions = map[string]permissions.Definition{
	"get":    permissions.Of("get"),
	"search": permissions.Of("search"),
	"create": permissions.Of("create"),
	"update": permissions.Of("update"),
	"delete": permissions.Of("delete"),
	"bulk":   permissions.Of("create"),
}

func (o HandlerOptions) permissions(op string) permissions.Definition {
	if def, ok := o.Permissions[op]; ok {
		return def
	}
	return defaultPermissions[op]
}

func (o HandlerOptions) searchLocations() map[string]handler.Location {
	locs := map[string]handler.Location{
		"query":  handler.Query("q"),
		"limit":  handler.Query(),
		"offset": handler.Query(),
		"size":   handler.Query(),
		"from":   handler.Query(),
		"filter": handler.Body("filter"),
		"sort":   handler.Body("sort"),
	}
	for k, v := range o.SearchLocations {
		locs[k] = v
	}
	return locs
}

// NewHandlers arma get/search/create/update/delete/bulk sobre r.
func (r *Resource) NewHandlers(opts HandlerOptions) Handlers {
	if opts.Module == "" {
		opts.Module = r.name
	}
	desc := r.cfg.Description

	h := Handlers{}

	h.Get = handler.New(handler.Definition{
		Module:      opts.Module,
		Method:      http.MethodGet,
		Path:        "/{id}",
		Summary:     "Get a " + r.name + " by id",
		Description: desc,
		Props:       r.PropsGet(),
		Response:    r.ResponseGet(),
		Locations: map[string]handler.Location{
			"id":    handler.Param(),
			"cache": handler.Query(),
		},
		Permissions: opts.permissions("get"),
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			cache, _ := props["cache"].(bool)
			return r.Get(ctx, GetProps{ID: props["id"], Cache: cache})
		},
	})

	h.Search = handler.New(handler.Definition{
		Module:      opts.Module,
		Method:      http.MethodPost,
		Path:        "/_search",
		Summary:     "Search " + r.name + " documents",
		Description: desc,
		Props:       PropsSearch(),
		Response:    r.ResponseSearch(),
		Locations:   opts.searchLocations(),
		Permissions: opts.permissions("search"),
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			return r.Search(ctx, SearchPropsFrom(props))
		},
	})

	h.Create = handler.New(handler.Definition{
		Module:       opts.Module,
		Method:       http.MethodPost,
		Path:         "/",
		Summary:      "Create a " + r.name,
		Description:  desc,
		Props:        r.PropsCreate(opts.CreateSchema),
		Response:     r.ResponseUpdate(),
		Locations:    map[string]handler.Location{"data": handler.Body()},
		Permissions:  opts.permissions("create"),
		Dependencies: opts.Dependencies,
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			data, _ := props["data"].(map[string]any)
			if opts.BeforeCreate != nil {
				var err error
				if data, err = opts.BeforeCreate(ctx, data); err != nil {
					return nil, err
				}
			}
			return r.Create(ctx, data)
		},
	})

	h.Update = handler.New(handler.Definition{
		Module:       opts.Module,
		Method:       http.MethodPost,
		Path:         "/{id}",
		Summary:      "Update a " + r.name,
		Description:  desc,
		Props:        r.PropsUpdate(opts.CreateSchema),
		Response:     r.ResponseUpdate(),
		Locations:    map[string]handler.Location{"id": handler.Param(), "data": handler.Body()},
		Permissions:  opts.permissions("update"),
		Dependencies: opts.Dependencies,
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			data, _ := props["data"].(map[string]any)
			if opts.BeforeUpdate != nil {
				var err error
				if data, err = opts.BeforeUpdate(ctx, props["id"], data); err != nil {
					return nil, err
				}
			}
			return r.Update(ctx, UpdateProps{ID: props["id"], Data: data})
		},
	})

	h.Delete = handler.New(handler.Definition{
		Module:      opts.Module,
		Method:      http.MethodDelete,
		Path:        "/{id}",
		Summary:     "Delete a " + r.name,
		Description: desc,
		Props:       r.PropsDelete(),
		Response:    r.ResponseDelete(),
		Locations:   map[string]handler.Location{"id": handler.Param()},
		Permissions: opts.permissions("delete"),
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			return r.Delete(ctx, DeleteProps{ID: props["id"]})
		},
	})

	h.BulkCreate = handler.New(handler.Definition{
		Module:      opts.Module,
		Method:      http.MethodPost,
		Path:        "/_bulk",
		Summary:     "Create up to 200 " + r.name + " documents",
		Description: desc,
		Props:       r.PropsBulkCreate(opts.CreateSchema),
		Response:    ResponseBulkCreate(),
		Locations:   map[string]handler.Location{"data": handler.Body("data")},
		Permissions: opts.permissions("bulk"),
		Fn: func(ctx context.Context, props map[string]any, _ handler.Deps) (map[string]any, error) {
			raw, _ := props["data"].([]any)
			items := make([]map[string]any, 0, len(raw))
			for _, item := range raw {
				data, _ := item.(map[string]any)
				if opts.BeforeCreate != nil {
					var err error
					if data, err = opts.BeforeCreate(ctx, data); err != nil {
						return nil, err
					}
				}
				items = append(items, data)
			}
			res, err := r.BulkCreate(ctx, items)
			if err != nil {
				return nil, err
			}
			return map[string]any{"created": res.Created, "errors": res.Errors}, nil
		},
	})

	return h
}

// SearchPropsFrom traduce las props ya validadas de PropsSearch. size y from
// pisan a limit y offset.
func SearchPropsFrom(props map[string]any) SearchProps {
	p := SearchProps{}
	p.Query, _ = props["query"].(string)
	p.Filter, _ = props["filter"].([]any)

	if raw, ok := props["sort"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				p.Sort = append(p.Sort, str)
			}
		}
	}

	if n, ok := toInt(props["limit"]); ok {
		p.Limit = n
	}
	if n, ok := toInt(props["offset"]); ok {
		p.Offset = n
	}
	if n, ok := toInt(props["size"]); ok {
		p.Limit = n
	}
	if n, ok := toInt(props["from"]); ok {
		p.Offset = n
	}
	return p
}
