// Package docs arma el documento OpenAPI a partir de los handlers montados
// y lo publica para swagger-ui.
package docs

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"resource-api/internal/core/handler"

	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// InstanceName es el nombre con el que se registra el documento en swag.
const InstanceName = "resource-api"

type Info struct {
	Title       string
	Version     string
	Description string
	Host        string
}

// Spec devuelve el documento OpenAPI 3 de hs.
func Spec(info Info, hs []*handler.Handler) map[string]any {
	paths := map[string]any{}
	for _, h := range hs {
		path := h.OpenAPIPath()
		item, _ := paths[path].(map[string]any)
		if item == nil {
			item = map[string]any{}
			paths[path] = item
		}
		item[strings.ToLower(h.Method())] = h.Operation()
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       info.Title,
			"version":     info.Version,
			"description": info.Description,
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer"},
			},
		},
		"security": []any{map[string]any{"bearer": []any{}}},
	}
	if info.Host != "" {
		doc["servers"] = []any{map[string]any{"url": info.Host}}
	}
	return doc
}

type document struct {
	raw atomic.Value
}

func (d *document) ReadDoc() string {
	s, _ := d.raw.Load().(string)
	return s
}

var (
	registerOnce sync.Once
	current      = &document{}
)

// Publish registra el documento en swag (una sola vez por proceso) y
// reemplaza su contenido.
func Publish(spec map[string]any) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	registerOnce.Do(func() { swag.Register(InstanceName, current) })
	current.raw.Store(string(raw))
	return nil
}

// UI sirve swagger-ui; doc.json sale del documento publicado.
func UI(prefix string) http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(strings.TrimRight(prefix, "/")+"/doc.json"),
		httpSwagger.InstanceName(InstanceName),
	)
}

// Definition sirve el documento publicado tal cual.
func Definition() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(current.ReadDoc()))
	})
}
