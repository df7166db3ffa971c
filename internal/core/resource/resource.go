// Package resource es el motor de documentos: get/search/create/update/delete
// sobre un índice del document store, con cache-aside, versionado optimista,
// campos secretos y propagación a recursos dependientes.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"resource-api/internal/core/schema"
	"resource-api/internal/platform/logger"
	"resource-api/internal/platform/metrics"
	"resource-api/internal/platform/tasks"
	"resource-api/internal/ports/cache"
	"resource-api/internal/ports/docstore"
)

type Document = docstore.Document

var ErrFrozen = errors.New("resource: dependency graph is frozen")

// Dependency declara que un campo del documento es una copia desnormalizada
// de otro recurso. Transform recibe el documento del otro recurso y devuelve
// el valor a guardar en el campo.
type Dependency struct {
	Resource  string
	Transform func(doc Document) any
}

type (
	GetFunc    func(ctx context.Context, p GetProps) (Document, error)
	UpdateFunc func(ctx context.Context, p UpdateProps) (Document, error)
	DeleteFunc func(ctx context.Context, p DeleteProps) (Document, error)
)

// Hooks interceptan la operación; next es la implementación por defecto.
// Corren con un contexto de super usuario.
type Hooks struct {
	OnGet    func(ctx context.Context, p GetProps, next GetFunc) (Document, error)
	OnUpdate func(ctx context.Context, p UpdateProps, next UpdateFunc) (Document, error)
	OnDelete func(ctx context.Context, p DeleteProps, original Document, next DeleteFunc) (Document, error)
}

type Config struct {
	Name        string
	Description string

	// Schema del documento sin envelope. Debe tener un campo "id" string o
	// numérico; eso decide cómo se generan los ids.
	Schema *schema.ObjectSchema

	Dependencies map[string]Dependency

	// Secrets reemplaza esos campos en toda respuesta.
	Secrets map[string]any

	Hooks Hooks
}

type Deps struct {
	Store   docstore.Store
	Cache   cache.Cache // opcional
	Counter *Counter    // requerido si el id es numérico
	Log     logger.Logger
	Tasks   *tasks.Runner
	Metrics *metrics.Metrics
	Now     func() time.Time

	IndexPrefix string
}

type fieldKind int

const (
	objectField fieldKind = iota
	arrayField
)

type dependent struct {
	resource  *Resource
	field     string
	transform func(Document) any
	kind      fieldKind
}

type Resource struct {
	name      string
	index     string
	cfg       Config
	shape     *schema.ObjectSchema
	numericID bool

	store   docstore.Store
	cache   cache.Cache
	counter *Counter
	log     logger.Logger
	tasks   *tasks.Runner
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	frozen     bool
	dependents []dependent

	// última versión escrita en el cache por key
	cacheMu       sync.Mutex
	cacheVersions map[string]float64
}

// New arma el recurso y crea el índice si falta.
func New(ctx context.Context, cfg Config, deps Deps) (*Resource, error) {
	if cfg.Name == "" {
		return nil, errors.New("resource: name is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("resource %s: schema is required", cfg.Name)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("resource %s: store is required", cfg.Name)
	}

	idSchema, ok := cfg.Schema.Field("id")
	if !ok {
		return nil, fmt.Errorf("resource %s: schema has no id field", cfg.Name)
	}
	var numeric bool
	switch schema.Unwrap(idSchema).(type) {
	case *schema.NumberSchema:
		numeric = true
	case *schema.StringSchema:
	default:
		return nil, fmt.Errorf("resource %s: id must be a string or a number", cfg.Name)
	}
	if numeric && deps.Counter == nil {
		return nil, fmt.Errorf("resource %s: numeric ids need a counter", cfg.Name)
	}

	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Tasks == nil {
		deps.Tasks = tasks.NewRunner(deps.Log, 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &Resource{
		name:      cfg.Name,
		index:     deps.IndexPrefix + cfg.Name,
		cfg:       cfg,
		shape:     cfg.Schema.Merge(Envelope),
		numericID: numeric,
		store:     deps.Store,
		cache:     deps.Cache,
		counter:   deps.Counter,
		log:       deps.Log.With(map[string]any{"resource": cfg.Name}),
		tasks:     deps.Tasks,
		metrics:   deps.Metrics,
		now:       deps.Now,

		cacheVersions: map[string]float64{},
	}

	if err := r.store.EnsureIndex(ctx, r.index); err != nil {
		return nil, fmt.Errorf("resource %s: ensure index: %w", cfg.Name, err)
	}
	return r, nil
}

func (r *Resource) Name() string        { return r.name }
func (r *Resource) Index() string       { return r.index }
func (r *Resource) Description() string { return r.cfg.Description }

// Schema es el schema declarado (sin envelope).
func (r *Resource) Schema() *schema.ObjectSchema { return r.cfg.Schema }

// Document es el schema completo tal como se guarda.
func (r *Resource) Document() *schema.ObjectSchema { return r.shape }

// IDSchema es el schema del campo id.
func (r *Resource) IDSchema() schema.Schema {
	s, _ := r.cfg.Schema.Field("id")
	return s
}

// DeclaredDependency es un campo dependiente tal como se declaró.
type DeclaredDependency struct {
	Field     string
	Resource  string
	Transform func(Document) any
}

// Dependencies devuelve los campos dependientes ordenados por nombre.
func (r *Resource) Dependencies() []DeclaredDependency {
	out := make([]DeclaredDependency, 0, len(r.cfg.Dependencies))
	for field, d := range r.cfg.Dependencies {
		out = append(out, DeclaredDependency{Field: field, Resource: d.Resource, Transform: d.Transform})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// AddDependent registra que dep.field copia documentos de r. Sólo se puede
// llamar antes de Freeze.
func (r *Resource) AddDependent(dep *Resource, field string, transform func(Document) any) error {
	fs, ok := dep.cfg.Schema.Field(field)
	if !ok {
		return fmt.Errorf("resource %s: unknown field %q", dep.name, field)
	}

	var kind fieldKind
	switch schema.Unwrap(fs).(type) {
	case *schema.ObjectSchema:
		kind = objectField
	case *schema.ArraySchema:
		kind = arrayField
	default:
		return fmt.Errorf("resource %s: dependent field %q must be an object or an array", dep.name, field)
	}
	if transform == nil {
		return fmt.Errorf("resource %s: dependent field %q has no transform", dep.name, field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	r.dependents = append(r.dependents, dependent{resource: dep, field: field, transform: transform, kind: kind})
	return nil
}

// Freeze cierra el grafo; desde acá dependents se lee sin lock.
func (r *Resource) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Dependents lista "<índice>.<campo>" de cada back-edge registrado.
func (r *Resource) Dependents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.dependents))
	for _, d := range r.dependents {
		out = append(out, d.resource.index+"."+d.field)
	}
	return out
}

func (r *Resource) cacheKey(id string) string {
	return r.index + ":" + id
}

// redact pisa los campos secretos con su placeholder.
func (r *Resource) redact(doc Document) Document {
	out := make(Document, len(doc)+len(r.cfg.Secrets))
	for k, v := range doc {
		out[k] = v
	}
	for k, v := range r.cfg.Secrets {
		out[k] = v
	}
	return out
}
