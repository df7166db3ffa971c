package registry_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	memstore "resource-api/internal/adapters/storage/memory"
	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/registry"
	"resource-api/internal/core/resource"
	"resource-api/internal/core/schema"
	"resource-api/internal/platform/logger"
	"resource-api/internal/platform/tasks"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var author = schema.Object(schema.Fields{"id": schema.Int(), "name": schema.String()})

func authorOf(doc resource.Document) any {
	return map[string]any{"id": doc["id"], "name": doc["name"]}
}

type fixture struct {
	reg    *registry.Registry
	logs   *bytes.Buffer
	runner *tasks.Runner
	deps   resource.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Output: &buf})
	store := memstore.NewDocumentStore()
	runner := tasks.NewRunner(log, time.Second)
	counter, err := resource.LoadCounter(context.Background(), store, "", runner, log)
	require.NoError(t, err)

	return &fixture{
		reg:    registry.New(log),
		logs:   &buf,
		runner: runner,
		deps:   resource.Deps{Store: store, Counter: counter, Tasks: runner, Log: log},
	}
}

func (f *fixture) add(t *testing.T, cfg resource.Config) *resource.Resource {
	t.Helper()
	res, err := resource.New(context.Background(), cfg, f.deps)
	require.NoError(t, err)
	require.NoError(t, f.reg.AddResource(cfg.Name, res))
	return res
}

func TestWireAddsBackEdges(t *testing.T) {
	f := newFixture(t)
	users := f.add(t, resource.Config{
		Name:   "user",
		Schema: schema.Object(schema.Fields{"id": schema.Int(), "name": schema.String()}),
	})
	keys := f.add(t, resource.Config{
		Name:         "api-key",
		Schema:       schema.Object(schema.Fields{"id": schema.String(), "author": author}),
		Dependencies: map[string]resource.Dependency{"author": {Resource: "user", Transform: authorOf}},
	})

	require.NoError(t, f.reg.Wire())

	assert.Equal(t, []string{"api-key.author"}, users.Dependents())
	assert.Contains(t, f.logs.String(), "Successfully mounted 1 dependencies")

	// congelado: ni nuevos back-edges ni una segunda pasada
	assert.ErrorIs(t, users.AddDependent(keys, "author", authorOf), resource.ErrFrozen)
	assert.ErrorIs(t, f.reg.Wire(), registry.ErrWired)
	assert.ErrorIs(t, f.reg.AddResource("other", users), registry.ErrWired)
}

func TestWireWarnsOnUnknownResource(t *testing.T) {
	f := newFixture(t)
	f.add(t, resource.Config{
		Name:         "group",
		Schema:       schema.Object(schema.Fields{"id": schema.Int(), "author": author}),
		Dependencies: map[string]resource.Dependency{"author": {Resource: "ghost", Transform: authorOf}},
	})

	require.NoError(t, f.reg.Wire())

	assert.Contains(t, f.logs.String(), `Referencing unknown resource \"ghost\" in \"group\" resource`)
	assert.Contains(t, f.logs.String(), "Successfully mounted 0 dependencies")
}

func TestWireReportsInvalidDependentField(t *testing.T) {
	f := newFixture(t)
	f.add(t, resource.Config{
		Name:   "user",
		Schema: schema.Object(schema.Fields{"id": schema.Int(), "name": schema.String()}),
	})
	f.add(t, resource.Config{
		Name:         "note",
		Schema:       schema.Object(schema.Fields{"id": schema.Int(), "author": schema.String()}),
		Dependencies: map[string]resource.Dependency{"author": {Resource: "user", Transform: authorOf}},
	})

	err := f.reg.Wire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "note.author")
}

func TestHandlersMountAndCatalogue(t *testing.T) {
	f := newFixture(t)
	users := f.add(t, resource.Config{
		Name:   "user",
		Schema: schema.Object(schema.Fields{"id": schema.Int(), "name": schema.String()}),
	})
	hs := users.NewHandlers(resource.HandlerOptions{Module: "user.user"})
	require.NoError(t, f.reg.AddHandlers(hs.All()...))
	require.NoError(t, f.reg.Wire())

	assert.Error(t, f.reg.AddHandlers(hs.Get))
	assert.Len(t, f.reg.HandlerIDs(), 6)

	h, ok := f.reg.Handler(hs.Search.ID())
	require.True(t, ok)
	assert.Equal(t, "/v1/user/user/_search", h.FullPath())

	assert.Equal(t, []string{
		"user.user.create",
		"user.user.delete",
		"user.user.get",
		"user.user.search",
		"user.user.update",
	}, f.reg.Permissions())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(apicontext.WithResolution(req.Context(), apicontext.SuperUser(), nil)))
		})
	})
	f.reg.Mount(r)

	for _, path := range []string{"/v1/user/user", "/v1/user/user/"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"name":"Ada"}`))
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/user/user/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.runner.Wait()
}
