// Package registry junta recursos y handlers, conecta el grafo de
// dependencias y monta los handlers en el router.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"resource-api/internal/core/handler"
	"resource-api/internal/core/resource"
	"resource-api/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

var ErrWired = errors.New("registry: dependency graph already wired")

type Registry struct {
	log logger.Logger

	mu        sync.RWMutex
	resources map[string]*resource.Resource
	order     []string
	handlers  []*handler.Handler
	byID      map[string]*handler.Handler
	wired     bool
}

func New(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		log:       log,
		resources: make(map[string]*resource.Resource),
		byID:      make(map[string]*handler.Handler),
	}
}

// AddResource registra un recurso por nombre (primera pasada). Un nombre
// repetido reemplaza al anterior con un warning.
func (r *Registry) AddResource(name string, res *resource.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wired {
		return ErrWired
	}
	if _, ok := r.resources[name]; ok {
		r.log.Warn(fmt.Sprintf("Duplicate resource %q, replacing it", name), nil)
	} else {
		r.order = append(r.order, name)
	}
	r.resources[name] = res
	return nil
}

// AddHandlers registra handlers; dos handlers con el mismo id son un error.
func (r *Registry) AddHandlers(hs ...*handler.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range hs {
		if h == nil {
			continue
		}
		if prev, ok := r.byID[h.ID()]; ok {
			return fmt.Errorf("registry: handler %s %s registered twice (%s)", h.Method(), h.FullPath(), prev.ID())
		}
		h.SetLogger(r.log)
		r.byID[h.ID()] = h
		r.handlers = append(r.handlers, h)
	}
	return nil
}

// Wire es la segunda pasada: por cada campo dependiente declarado registra
// el back-edge en el recurso referenciado y después congela todo el grafo.
// Un recurso desconocido sólo se loguea.
func (r *Registry) Wire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wired {
		return ErrWired
	}

	var errs []error
	mounted := 0
	for _, name := range r.order {
		res := r.resources[name]
		for _, dep := range res.Dependencies() {
			target, ok := r.resources[dep.Resource]
			if !ok {
				r.log.Warn(fmt.Sprintf("Referencing unknown resource %q in %q resource", dep.Resource, name), nil)
				continue
			}
			if err := target.AddDependent(res, dep.Field, dep.Transform); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", name, dep.Field, err))
				continue
			}
			mounted++
		}
	}

	for _, res := range r.resources {
		res.Freeze()
	}
	r.wired = true

	r.log.Info(fmt.Sprintf("Successfully mounted %d dependencies", mounted), nil)
	return errors.Join(errs...)
}

func (r *Registry) Resource(name string) (*resource.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// Resources en orden de registro.
func (r *Registry) Resources() []*resource.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*resource.Resource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.resources[name])
	}
	return out
}

// Handlers en orden de registro.
func (r *Registry) Handlers() []*handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*handler.Handler(nil), r.handlers...)
}

func (r *Registry) Handler(id string) (*handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// HandlerIDs ordenados.
func (r *Registry) HandlerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Permissions es el catálogo de todas las keys que algún handler mira.
func (r *Registry) Permissions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, h := range r.handlers {
		for _, key := range h.Permissions().Keys() {
			seen[key] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Mount registra cada handler en su ruta. Los handlers en la raíz del módulo
// también responden con barra final.
func (r *Registry) Mount(router chi.Router) {
	for _, h := range r.Handlers() {
		router.Method(h.Method(), h.FullPath(), h)
		if h.Path() == "/" {
			router.Method(h.Method(), h.FullPath()+"/", h)
		}
	}
}
