package resource_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	memcache "resource-api/internal/adapters/cache/memory"
	memstore "resource-api/internal/adapters/storage/memory"
	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/resource"
	"resource-api/internal/core/schema"
	"resource-api/internal/platform/tasks"
	"resource-api/internal/ports/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authorSchema = schema.Object(schema.Fields{
	"id":   schema.Int(),
	"name": schema.String(),
})

var userSchema = schema.Object(schema.Fields{
	"id":       schema.Int(),
	"name":     schema.String(),
	"rank":     schema.Optional(schema.Int()),
	"password": schema.Optional(schema.String().Min(4)),
})

var keySchema = schema.Object(schema.Fields{
	"id":     schema.String(),
	"author": authorSchema,
})

var groupSchema = schema.Object(schema.Fields{
	"id":      schema.Int(),
	"name":    schema.String(),
	"members": schema.Array(authorSchema),
})

func authorOf(doc resource.Document) any {
	return map[string]any{"id": doc["id"], "name": doc["name"]}
}

type env struct {
	store   docstore.Store
	cache   *memcache.Cache
	tasks   *tasks.Runner
	counter *resource.Counter
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store: memstore.NewDocumentStore(),
		cache: memcache.New(),
		tasks: tasks.NewRunner(nil, time.Second),
		now:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	counter, err := resource.LoadCounter(context.Background(), e.store, "test-", e.tasks, nil)
	require.NoError(t, err)
	e.counter = counter
	return e
}

func (e *env) resource(t *testing.T, cfg resource.Config) *resource.Resource {
	t.Helper()
	r, err := resource.New(context.Background(), cfg, resource.Deps{
		Store:       e.store,
		Cache:       e.cache,
		Counter:     e.counter,
		Tasks:       e.tasks,
		Now:         func() time.Time { return e.now },
		IndexPrefix: "test-",
	})
	require.NoError(t, err)
	return r
}

func (e *env) users(t *testing.T) *resource.Resource {
	return e.resource(t, resource.Config{
		Name:    "user",
		Schema:  userSchema,
		Secrets: map[string]any{"password": "**secret**"},
	})
}

func requireStatus(t *testing.T, err error, status int) *apierror.Error {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok, "expected apierror, got %v", err)
	assert.Equal(t, status, apiErr.Status)
	return apiErr
}

func TestNewRejectsBadIDs(t *testing.T) {
	e := newEnv(t)
	_, err := resource.New(context.Background(), resource.Config{
		Name:   "broken",
		Schema: schema.Object(schema.Fields{"id": schema.Boolean()}),
	}, resource.Deps{Store: e.store})
	assert.Error(t, err)

	_, err = resource.New(context.Background(), resource.Config{
		Name:   "nocounter",
		Schema: schema.Object(schema.Fields{"id": schema.Int()}),
	}, resource.Deps{Store: e.store})
	assert.Error(t, err)
}

func TestCreateAssignsIDAndEnvelope(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)

	doc, err := users.Create(context.Background(), map[string]any{"name": "Ada", "version": 10.0})
	require.NoError(t, err)

	assert.Equal(t, 1.0, doc["id"])
	assert.Equal(t, 1.0, doc["version"])
	assert.Equal(t, "test-user", doc["_index"])
	assert.True(t, doc["createdAt"].(time.Time).Equal(e.now))
	assert.True(t, doc["updatedAt"].(time.Time).Equal(e.now))

	second, err := users.Create(context.Background(), map[string]any{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, second["id"])
}

func TestStringIDs(t *testing.T) {
	e := newEnv(t)
	keys := e.resource(t, resource.Config{Name: "api-key", Schema: keySchema})

	doc, err := keys.Create(context.Background(), map[string]any{"author": map[string]any{"id": 1, "name": "Ada"}})
	require.NoError(t, err)

	id, ok := doc["id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 20)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada", "rank": 3})
	require.NoError(t, err)

	e.now = e.now.Add(time.Minute)
	updated, err := users.Update(ctx, resource.UpdateProps{ID: created["id"], Data: map[string]any{"name": "Ada L."}})
	require.NoError(t, err)

	assert.Equal(t, created["version"].(float64)+1, updated["version"])
	assert.Equal(t, "Ada L.", updated["name"])
	assert.Equal(t, 3.0, updated["rank"])
	assert.True(t, updated["createdAt"].(time.Time).Equal(created["createdAt"].(time.Time)))
	assert.True(t, updated["updatedAt"].(time.Time).After(created["updatedAt"].(time.Time)))
}

func TestVersionIsMonotonic(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	doc, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	last := doc["version"].(float64)
	for i := 0; i < 5; i++ {
		doc, err = users.Update(ctx, resource.UpdateProps{ID: doc["id"], Data: map[string]any{"rank": i}})
		require.NoError(t, err)
		v := doc["version"].(float64)
		assert.Greater(t, v, last)
		last = v
	}
}

func TestExplicitVersionSequence(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	doc, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, 1.0, doc["version"])

	doc, err = users.Update(ctx, resource.UpdateProps{ID: doc["id"], Data: map[string]any{"version": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc["version"])

	doc, err = users.Update(ctx, resource.UpdateProps{ID: doc["id"], Data: map[string]any{"version": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, doc["version"])

	_, err = users.Update(ctx, resource.UpdateProps{ID: doc["id"], Data: map[string]any{"version": 3}})
	apiErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "version is smaller or equal to documents actual version", apiErr.Message)
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)

	const n = 50
	ids := make(chan any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := users.Create(context.Background(), map[string]any{"name": fmt.Sprintf("user %d", i)})
			if err == nil {
				ids <- doc["id"]
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[any]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicated id %v", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	e.tasks.Wait()
	assert.Equal(t, n, e.counter.Value("test-user"))
}

func TestSecretsAreRedacted(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada", "password": "hash-1234"})
	require.NoError(t, err)
	assert.Equal(t, "**secret**", created["password"])

	got, err := users.Get(ctx, resource.GetProps{ID: created["id"], Cache: false})
	require.NoError(t, err)
	assert.Equal(t, "**secret**", got["password"])

	found, err := users.Search(ctx, resource.SearchProps{Limit: 10})
	require.NoError(t, err)
	hits := found["hits"].([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, "**secret**", hits[0].(resource.Document)["password"])

	// un update sin password no pisa el valor guardado con el placeholder
	_, err = users.Update(ctx, resource.UpdateProps{ID: created["id"], Data: map[string]any{"name": "Ada L."}})
	require.NoError(t, err)

	raw, err := users.Lookup(ctx, created["id"])
	require.NoError(t, err)
	assert.Equal(t, "hash-1234", raw["password"])
}

func TestGetUsesCache(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	e.tasks.Wait()

	got, err := users.Get(ctx, resource.GetProps{ID: created["id"], Cache: true})
	require.NoError(t, err)
	assert.Equal(t, true, got["_cache"])
	assert.Equal(t, "Ada", got["name"])

	got, err = users.Get(ctx, resource.GetProps{ID: created["id"], Cache: false})
	require.NoError(t, err)
	assert.Equal(t, false, got["_cache"])
}

func TestCorruptCacheEntryIsRepaired(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	e.tasks.Wait()

	key := "test-user:" + resource.FormatID(created["id"])
	require.NoError(t, e.cache.Set(ctx, key, `{"id":"not-a-number"}`))

	got, err := users.Get(ctx, resource.GetProps{ID: created["id"], Cache: true})
	require.NoError(t, err)
	assert.Equal(t, false, got["_cache"])
	assert.Equal(t, "Ada", got["name"])

	e.tasks.Wait()
	got, err = users.Get(ctx, resource.GetProps{ID: created["id"], Cache: true})
	require.NoError(t, err)
	assert.Equal(t, true, got["_cache"])
}

// slowCache demora los Set cuyo valor contiene match.
type slowCache struct {
	*memcache.Cache
	match string
	delay time.Duration
}

func (c *slowCache) Set(ctx context.Context, key, value string) error {
	if strings.Contains(value, c.match) {
		time.Sleep(c.delay)
	}
	return c.Cache.Set(ctx, key, value)
}

func TestStaleCacheRefreshDoesNotWinOverUpdate(t *testing.T) {
	e := newEnv(t)
	slow := &slowCache{Cache: e.cache, match: `"name":"Ada"`, delay: 50 * time.Millisecond}
	users, err := resource.New(context.Background(), resource.Config{Name: "user", Schema: userSchema}, resource.Deps{
		Store:       e.store,
		Cache:       slow,
		Counter:     e.counter,
		Tasks:       e.tasks,
		Now:         func() time.Time { return e.now },
		IndexPrefix: "test-",
	})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	e.tasks.Wait()

	// get sin cache: refresca con la versión 1, demorado
	_, err = users.Get(ctx, resource.GetProps{ID: created["id"], Cache: false})
	require.NoError(t, err)
	_, err = users.Update(ctx, resource.UpdateProps{ID: created["id"], Data: map[string]any{"name": "Augusta"}})
	require.NoError(t, err)
	e.tasks.Wait()

	got, err := users.Get(ctx, resource.GetProps{ID: created["id"], Cache: true})
	require.NoError(t, err)
	assert.Equal(t, true, got["_cache"])
	assert.Equal(t, "Augusta", got["name"])
	assert.EqualValues(t, 2, got["version"])
}

func TestGetNotFound(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)

	_, err := users.Get(context.Background(), resource.GetProps{ID: 99, Cache: true})
	apiErr := requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, "not found", apiErr.Message)
}

func TestUpdateRejectsInvalidDocument(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	_, err = users.Update(ctx, resource.UpdateProps{ID: created["id"], Data: map[string]any{"password": "no"}})
	apiErr := requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "document is invalid", apiErr.Message)
	assert.Equal(t, apierror.TypeValidation, apiErr.Type)

	_, err = users.Create(ctx, map[string]any{})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	e.tasks.Wait()

	out, err := users.Delete(ctx, resource.DeleteProps{ID: created["id"]})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "test-user", out["_index"])

	_, err = users.Get(ctx, resource.GetProps{ID: created["id"], Cache: true})
	requireStatus(t, err, http.StatusNotFound)

	_, err = users.Delete(ctx, resource.DeleteProps{ID: created["id"]})
	requireStatus(t, err, http.StatusNotFound)
}

func TestSearchFilterSortAndPaging(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := users.Create(ctx, map[string]any{"name": fmt.Sprintf("user %d", i), "rank": i % 2})
		require.NoError(t, err)
	}

	res, err := users.Search(ctx, resource.SearchProps{
		Filter: []any{"id >= 2"},
		Sort:   []string{"id:desc"},
		Limit:  2,
	})
	require.NoError(t, err)
	hits := res["hits"].([]any)
	require.Len(t, hits, 2)
	assert.Equal(t, 5.0, hits[0].(resource.Document)["id"])
	assert.Equal(t, 4.0, hits[1].(resource.Document)["id"])
	assert.Equal(t, 4, res["total"])

	res, err = users.Search(ctx, resource.SearchProps{
		Filter: []any{[]any{"id = 1", "id = 5"}, "rank = 1"},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Len(t, res["hits"], 2)

	res, err = users.Search(ctx, resource.SearchProps{Query: "user 3", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res["hits"], 1)

	_, err = users.Search(ctx, resource.SearchProps{Filter: []any{"id"}})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = users.Search(ctx, resource.SearchProps{Sort: []string{"id:sideways"}})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestBulkCreate(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	ctx := context.Background()

	res, err := users.BulkCreate(ctx, []map[string]any{
		{"name": "Ada"},
		{"rank": 1},
		{"name": "Grace"},
	})
	require.NoError(t, err)
	assert.Equal(t, resource.BulkResult{Created: 2, Errors: 1}, res)

	tooMany := make([]map[string]any, resource.MaxBulk+1)
	_, err = users.BulkCreate(ctx, tooMany)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestDependentObjectFieldPropagates(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	keys := e.resource(t, resource.Config{
		Name:         "api-key",
		Schema:       keySchema,
		Dependencies: map[string]resource.Dependency{"author": {Resource: "user", Transform: authorOf}},
	})
	require.NoError(t, users.AddDependent(keys, "author", authorOf))
	users.Freeze()
	keys.Freeze()
	ctx := context.Background()

	ada, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	grace, err := users.Create(ctx, map[string]any{"name": "Grace"})
	require.NoError(t, err)

	k1, err := keys.Create(ctx, map[string]any{"author": authorOf(ada)})
	require.NoError(t, err)
	k2, err := keys.Create(ctx, map[string]any{"author": authorOf(grace)})
	require.NoError(t, err)
	e.tasks.Wait()

	// deja una copia cacheada que la propagación tiene que invalidar
	_, err = keys.Get(ctx, resource.GetProps{ID: k1["id"], Cache: true})
	require.NoError(t, err)
	e.tasks.Wait()

	_, err = users.Update(ctx, resource.UpdateProps{ID: ada["id"], Data: map[string]any{"name": "Ada Lovelace"}})
	require.NoError(t, err)
	e.tasks.Wait()

	got, err := keys.Get(ctx, resource.GetProps{ID: k1["id"], Cache: true})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got["author"].(map[string]any)["name"])

	other, err := keys.Get(ctx, resource.GetProps{ID: k2["id"], Cache: false})
	require.NoError(t, err)
	assert.Equal(t, "Grace", other["author"].(map[string]any)["name"])
}

func TestDependentArrayFieldPropagates(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	groups := e.resource(t, resource.Config{
		Name:         "group",
		Schema:       groupSchema,
		Dependencies: map[string]resource.Dependency{"members": {Resource: "user", Transform: authorOf}},
	})
	require.NoError(t, users.AddDependent(groups, "members", authorOf))
	ctx := context.Background()

	ada, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	grace, err := users.Create(ctx, map[string]any{"name": "Grace"})
	require.NoError(t, err)

	g, err := groups.Create(ctx, map[string]any{
		"name":    "admins",
		"members": []any{authorOf(ada), authorOf(grace)},
	})
	require.NoError(t, err)
	e.tasks.Wait()

	_, err = users.Update(ctx, resource.UpdateProps{ID: grace["id"], Data: map[string]any{"name": "Grace Hopper"}})
	require.NoError(t, err)
	e.tasks.Wait()

	got, err := groups.Get(ctx, resource.GetProps{ID: g["id"], Cache: true})
	require.NoError(t, err)
	members := got["members"].([]any)
	require.Len(t, members, 2)
	assert.Equal(t, "Ada", members[0].(map[string]any)["name"])
	assert.Equal(t, "Grace Hopper", members[1].(map[string]any)["name"])
}

func TestAddDependentValidation(t *testing.T) {
	e := newEnv(t)
	users := e.users(t)
	keys := e.resource(t, resource.Config{Name: "api-key", Schema: keySchema})

	assert.Error(t, users.AddDependent(keys, "missing", authorOf))
	assert.Error(t, users.AddDependent(keys, "id", authorOf))
	assert.Error(t, users.AddDependent(keys, "author", nil))

	users.Freeze()
	assert.ErrorIs(t, users.AddDependent(keys, "author", authorOf), resource.ErrFrozen)
	assert.Empty(t, users.Dependents())
}

func TestHooks(t *testing.T) {
	e := newEnv(t)
	var deleted resource.Document
	users := e.resource(t, resource.Config{
		Name:   "user",
		Schema: userSchema,
		Hooks: resource.Hooks{
			OnGet: func(ctx context.Context, p resource.GetProps, next resource.GetFunc) (resource.Document, error) {
				c, ok := apicontext.From(ctx)
				if !ok || !c.Privileged() {
					return nil, apierror.Internal("hook without super user")
				}
				return next(ctx, p)
			},
			OnUpdate: func(ctx context.Context, p resource.UpdateProps, next resource.UpdateFunc) (resource.Document, error) {
				if name, ok := p.Data["name"].(string); ok {
					p.Data["name"] = name + "!"
				}
				return next(ctx, p)
			},
			OnDelete: func(ctx context.Context, p resource.DeleteProps, original resource.Document, next resource.DeleteFunc) (resource.Document, error) {
				deleted = original
				return next(ctx, p)
			},
		},
	})
	ctx := context.Background()

	doc, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada!", doc["name"])

	_, err = users.Get(ctx, resource.GetProps{ID: doc["id"]})
	require.NoError(t, err)

	_, err = users.Delete(ctx, resource.DeleteProps{ID: doc["id"]})
	require.NoError(t, err)
	assert.Equal(t, "Ada!", deleted["name"])

	_, err = users.Delete(ctx, resource.DeleteProps{ID: doc["id"]})
	requireStatus(t, err, http.StatusNotFound)
}
