package docs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"resource-api/internal/core/handler"
	"resource-api/internal/core/permissions"
	"resource-api/internal/core/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func testHandlers() []*handler.Handler {
	fn := func(context.Context, map[string]any, handler.Deps) (map[string]any, error) { return nil, nil }
	return []*handler.Handler{
		handler.New(handler.Definition{
			Module:      "user.user",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get a user by id",
			Props:       schema.Object(schema.Fields{"id": schema.Int()}),
			Locations:   map[string]handler.Location{"id": handler.Param()},
			Response:    schema.Object(schema.Fields{"id": schema.Int()}),
			Permissions: permissions.Of("get"),
			Fn:          fn,
		}),
		handler.New(handler.Definition{
			Module:    "user.user",
			Method:    http.MethodPost,
			Path:      "/{id}",
			Props:     schema.Object(schema.Fields{"id": schema.Int(), "data": schema.Object(schema.Fields{"name": schema.String()})}),
			Locations: map[string]handler.Location{"id": handler.Param(), "data": handler.Body()},
			Response:  schema.Object(schema.Fields{"id": schema.Int()}),
			Fn:        fn,
		}),
	}
}

func TestSpecGroupsMethodsByPath(t *testing.T) {
	spec := Spec(Info{Title: "resource-api", Version: "1.0.0", Host: "http://localhost:8080"}, testHandlers())

	assert.Equal(t, "3.0.3", spec["openapi"])
	paths := spec["paths"].(map[string]any)
	item, ok := paths["/v1/user/user/{id}"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, item, "get")
	assert.Contains(t, item, "post")

	get := item["get"].(map[string]any)
	assert.Equal(t, "Get a user by id", get["summary"])
	assert.Contains(t, item["post"].(map[string]any), "requestBody")
}

func TestPublishServesDocJSON(t *testing.T) {
	require.NoError(t, Publish(Spec(Info{Title: "first"}, nil)))
	require.NoError(t, Publish(Spec(Info{Title: "resource-api"}, testHandlers())))

	raw, err := swag.ReadDoc(InstanceName)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "resource-api", doc["info"].(map[string]any)["title"])

	rec := httptest.NewRecorder()
	UI("/v1/docs/").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/docs/doc.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/v1/user/user/{id}")
}
