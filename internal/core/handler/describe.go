package handler

import (
	"encoding/json"
	"net/url"
	"strings"

	"resource-api/internal/core/permissions"
	"resource-api/internal/core/schema"
)

// Export describe el handler para /v1/core/handler/{id}.
type Export struct {
	ID          string                  `json:"id"`
	Module      string                  `json:"module"`
	Method      string                  `json:"method"`
	Path        string                  `json:"path"`
	Summary     string                  `json:"summary,omitempty"`
	Description string                  `json:"description,omitempty"`
	Permissions permissions.Permissions `json:"permissions"`
	Locations   map[string]Location     `json:"locations"`
	Props       map[string]any          `json:"props"`
	Response    map[string]any          `json:"response"`
}

func (h *Handler) Export() Export {
	return Export{
		ID:          h.id,
		Module:      h.def.Module,
		Method:      h.def.Method,
		Path:        h.FullPath(),
		Summary:     h.def.Summary,
		Description: h.def.Description,
		Permissions: h.perms,
		Locations:   h.locations,
		Props:       h.def.Props.JSONSchema(),
		Response:    h.def.Response.JSONSchema(),
	}
}

// Curl arma un comando curl de ejemplo contra host, con valores vacíos del
// shape de cada prop.
func (h *Handler) Curl(host string) string {
	path := h.FullPath()
	query := url.Values{}
	var headers []string
	var body map[string]any

	for _, prop := range h.def.Props.Keys() {
		loc := h.locations[prop]
		field, _ := h.def.Props.Field(prop)
		empty := field.Empty()

		switch loc.In {
		case InParam:
			path = strings.ReplaceAll(path, "{"+loc.Label+"}", ":"+loc.Label)
		case InQuery:
			query.Set(loc.Label, toText(empty))
		case InHeader:
			headers = append(headers, loc.Label)
		case InBody:
			if body == nil {
				body = map[string]any{}
			}
			if loc.Label == "" {
				if m, ok := empty.(map[string]any); ok {
					for k, v := range m {
						body[k] = v
					}
				}
				continue
			}
			setPath(body, strings.Split(loc.Label, "."), empty)
		}
	}

	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(h.def.Method)
	for _, label := range headers {
		b.WriteString(` -H "` + label + `: empty"`)
	}
	b.WriteString(" '")
	b.WriteString(strings.TrimRight(host, "/"))
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteString("?" + query.Encode())
	}
	b.WriteString("'")
	if body != nil {
		raw, _ := json.Marshal(body)
		b.WriteString(" -H 'Content-Type: application/json' -d '")
		b.Write(raw)
		b.WriteString("'")
	}
	return b.String()
}

func setPath(m map[string]any, path []string, v any) {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

// Operation es la operación OpenAPI del handler. Las props de body forman el
// requestBody; el resto son parámetros.
func (h *Handler) Operation() map[string]any {
	var params []any
	bodyProps := map[string]any{}
	var bodyRequired []any
	var wholeBody map[string]any

	for _, prop := range h.def.Props.Keys() {
		loc := h.locations[prop]
		field, _ := h.def.Props.Field(prop)
		required := !schema.IsOptional(field)

		if loc.In == InBody {
			if loc.Label == "" {
				wholeBody = field.JSONSchema()
				continue
			}
			name := loc.Label
			bodyProps[name] = field.JSONSchema()
			if required {
				bodyRequired = append(bodyRequired, name)
			}
			continue
		}

		in := string(loc.In)
		if loc.In == InParam {
			in = "path"
			required = true
		}
		params = append(params, map[string]any{
			"name":     loc.Label,
			"in":       in,
			"required": required,
			"schema":   field.JSONSchema(),
		})
	}

	op := map[string]any{
		"operationId": h.id,
		"tags":        []any{modulePath(h.def.Module)},
		"responses": map[string]any{
			"200": map[string]any{
				"description": "OK",
				"content": map[string]any{
					"application/json": map[string]any{"schema": h.def.Response.JSONSchema()},
				},
			},
			"default": map[string]any{
				"description": "Error",
				"content": map[string]any{
					"application/json": map[string]any{"schema": errorSchema},
				},
			},
		},
	}
	if h.def.Summary != "" {
		op["summary"] = h.def.Summary
	}
	if h.def.Description != "" {
		op["description"] = h.def.Description
	}
	if len(params) > 0 {
		op["parameters"] = params
	}

	if wholeBody != nil || len(bodyProps) > 0 {
		bodySchema := wholeBody
		if bodySchema == nil {
			bodySchema = map[string]any{"type": "object", "properties": bodyProps}
			if len(bodyRequired) > 0 {
				bodySchema["required"] = bodyRequired
			}
		}
		op["requestBody"] = map[string]any{
			"required": true,
			"content": map[string]any{
				"application/json": map[string]any{"schema": bodySchema},
			},
		}
	}

	if keys := h.perms.Keys(); len(keys) > 0 {
		op["x-permissions"] = keys
	}
	if h.def.Public {
		op["security"] = []any{}
	}
	return op
}

// OpenAPIPath es FullPath en sintaxis OpenAPI (igual a la de chi salvo
// patrones con regex).
func (h *Handler) OpenAPIPath() string {
	p := h.FullPath()
	var b strings.Builder
	for {
		start := strings.Index(p, "{")
		if start < 0 {
			b.WriteString(p)
			return b.String()
		}
		end := strings.Index(p[start:], "}")
		if end < 0 {
			b.WriteString(p)
			return b.String()
		}
		name, _, _ := strings.Cut(p[start+1:start+end], ":")
		b.WriteString(p[:start] + "{" + name + "}")
		p = p[start+end+1:]
	}
}

var errorSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"error":   map[string]any{"type": "boolean"},
		"message": map[string]any{"type": "string"},
		"type":    map[string]any{"type": "string"},
		"details": map[string]any{},
		"status":  map[string]any{"type": "integer"},
	},
	"required": []any{"error", "message", "status"},
}
