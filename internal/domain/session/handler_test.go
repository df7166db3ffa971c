package session_test

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
	"resource-api/internal/domain/session"
	"resource-api/internal/domain/users"
	"resource-api/internal/platform/tasks"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	router http.Handler
	keys   *apikeys.Service
	runner *tasks.Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.NewDocumentStore()
	runner := tasks.NewRunner(nil, time.Second)
	counter, err := resource.LoadCounter(ctx, store, "", runner, nil)
	require.NoError(t, err)
	deps := resource.Deps{Store: store, Cache: memcache.New(), Counter: counter, Tasks: runner}

	us, err := users.NewService(ctx, deps)
	require.NoError(t, err)
	ks, err := apikeys.NewService(ctx, deps)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("engine"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = us.Resource().Create(ctx, map[string]any{
		"firstname": "Ada",
		"lastname":  "Lovelace",
		"name":      "Ada Lovelace",
		"email":     "ada@example.com",
		"password":  string(hash),
	})
	require.NoError(t, err)
	runner.Wait()

	login := session.NewLoginHandler(session.Options{
		Users:       us,
		SearchUsers: users.NewHandlers(us).Search,
		CreateKey:   apikeys.NewHandlers(ks).Create,
	})

	resolver := &apicontext.Resolver{Keys: ks}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			c, err := resolver.Resolve(req.Context(), req.Header.Get("Authorization"))
			next.ServeHTTP(w, req.WithContext(apicontext.WithResolution(req.Context(), c, err)))
		})
	})
	r.Method(login.Method(), login.FullPath(), login)

	return &fixture{router: r, keys: ks, runner: runner}
}

func (f *fixture) login(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/app/session/login", strings.NewReader(body)))
	f.runner.Wait()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestLoginIssuesKey(t *testing.T) {
	f := newFixture(t)

	code, out := f.login(t, `{"email":"ada@example.com","password":"engine"}`)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, false, out["error"])
	assert.Equal(t, map[string]any{"id": 1.0, "name": "Ada Lovelace"}, out["author"])

	token, _ := out["token"].(string)
	require.NotEmpty(t, token)

	doc, found, err := f.keys.LookupKey(context.Background(), token)
	require.NoError(t, err)
	require.True(t, found)
	perms, _ := doc["permissions"].(map[string]any)
	assert.Equal(t, true, perms["user.user.updateMySelf"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"email":"ada@example.com","password":"nope"}`,
		`{"email":"grace@example.com","password":"engine"}`,
	} {
		code, out := f.login(t, body)
		assert.Equal(t, http.StatusUnauthorized, code, body)
		assert.Equal(t, "invalid credentials", out["message"])
	}
}

func TestLoginValidatesProps(t *testing.T) {
	f := newFixture(t)

	code, out := f.login(t, `{"email":"not-an-email","password":"engine"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "props are invalid", out["message"])
	assert.Equal(t, apierror.TypeValidation, out["type"])
}
