package apikeys_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memcache "resource-api/internal/adapters/cache/memory"
	memstore "resource-api/internal/adapters/storage/memory"
	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/resource"
	"resource-api/internal/domain/apikeys"
	"resource-api/internal/platform/tasks"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *apikeys.Service
	hs     resource.Handlers
	runner *tasks.Runner
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runner: tasks.NewRunner(nil, time.Second),
		now:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc, err := apikeys.NewService(context.Background(), resource.Deps{
		Store: memstore.NewDocumentStore(),
		Cache: memcache.New(),
		Tasks: f.runner,
		Now:   func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	f.hs = apikeys.NewHandlers(svc)
	return f
}

func (f *fixture) do(t *testing.T, caller *apicontext.Context, method, path, body string) (int, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(apicontext.WithResolution(req.Context(), caller, nil)))
		})
	})
	for _, h := range f.hs.All() {
		r.Method(h.Method(), h.FullPath(), h)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	f.runner.Wait()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

const keyBody = `{"author":{"id":1,"name":"Ada Lovelace"},"permissions":{"user.user.get":true,"user.user.delete":false}}`

func TestCreateDefaultsExpiry(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, apicontext.SuperUser(), http.MethodPost, "/v1/app/api-key", keyBody)
	require.Equal(t, http.StatusOK, code, out)

	id, _ := out["id"].(string)
	assert.Len(t, id, 20)
	assert.Equal(t, f.now.Add(apikeys.DefaultTTL).Format(time.RFC3339), out["expiresAt"])
}

func TestCreateKeepsExplicitExpiry(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, apicontext.SuperUser(), http.MethodPost, "/v1/app/api-key",
		`{"author":{"id":1,"name":"Ada"},"permissions":{},"expiresAt":"2030-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "2030-01-01T00:00:00Z", out["expiresAt"])
}

func TestUpdateNeedsUpdateAndCreate(t *testing.T) {
	f := newFixture(t)
	_, out := f.do(t, apicontext.SuperUser(), http.MethodPost, "/v1/app/api-key", keyBody)
	path := "/v1/app/api-key/" + out["id"].(string)

	onlyUpdate := apicontext.NewAPIKey("k", map[string]bool{"app.api-key.update": true}, nil)
	code, out := f.do(t, onlyUpdate, http.MethodPost, path, `{"permissions":{}}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing permissions: app.api-key.create", out["message"])

	both := apicontext.NewAPIKey("k", map[string]bool{"app.api-key.update": true, "app.api-key.create": true}, nil)
	code, out = f.do(t, both, http.MethodPost, path, `{"permissions":{}}`)
	assert.Equal(t, http.StatusOK, code, out)
}

func TestLookupKey(t *testing.T) {
	f := newFixture(t)
	_, out := f.do(t, apicontext.SuperUser(), http.MethodPost, "/v1/app/api-key", keyBody)
	ctx := context.Background()

	doc, found, err := f.svc.LookupKey(ctx, out["id"].(string))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, map[string]any{"user.user.get": true, "user.user.delete": false}, doc["permissions"])

	_, found, err = f.svc.LookupKey(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolverWithStoredKeys(t *testing.T) {
	f := newFixture(t)
	_, out := f.do(t, apicontext.SuperUser(), http.MethodPost, "/v1/app/api-key", keyBody)
	token := out["id"].(string)

	resolver := &apicontext.Resolver{MasterKey: "master", Keys: f.svc, Now: func() time.Time { return f.now }}
	ctx := context.Background()

	c, err := resolver.Resolve(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, apicontext.MethodAPIKey, c.Method)
	assert.True(t, c.HasPermission("user.user.get"))
	assert.False(t, c.HasPermission("user.user.delete"))
	id, ok := c.AuthorID()
	require.True(t, ok)
	assert.Equal(t, 1.0, id)

	// pasado el TTL la misma key es rechazada
	resolver.Now = func() time.Time { return f.now.Add(apikeys.DefaultTTL + time.Second) }
	_, err = resolver.Resolve(ctx, "Bearer "+token)
	e, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, e.Status)
	assert.Equal(t, "api key has expired", e.Message)

	_, err = resolver.Resolve(ctx, "Bearer nope")
	e, _ = apierror.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "api key not found", e.Message)
}
