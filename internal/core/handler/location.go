package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"resource-api/internal/core/apierror"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
)

const maxBody = 8 << 20

// In es de dónde sale una prop en el request.
type In string

const (
	InHeader In = "header"
	InQuery  In = "query"
	InBody   In = "body"
	InParam  In = "param"
)

// Location dice dónde vive una prop. Label vacío = nombre de la prop, salvo
// en body donde vacío significa "el body entero". En body, un label con
// puntos lee un path anidado ("user.name").
type Location struct {
	In    In     `json:"location"`
	Label string `json:"label"`
}

func Header(label ...string) Location { return Location{In: InHeader, Label: firstOr(label)} }
func Query(label ...string) Location  { return Location{In: InQuery, Label: firstOr(label)} }
func Body(label ...string) Location   { return Location{In: InBody, Label: firstOr(label)} }
func Param(label ...string) Location  { return Location{In: InParam, Label: firstOr(label)} }

func firstOr(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// resolveLocations completa los labels vacíos con el nombre de la prop.
func resolveLocations(locs map[string]Location) map[string]Location {
	out := make(map[string]Location, len(locs))
	for prop, loc := range locs {
		if loc.Label == "" && loc.In != InBody {
			loc.Label = prop
		}
		out[prop] = loc
	}
	return out
}

// extract arma el map crudo de props. Lo que no viene en el request no se
// incluye, así los defaults y opcionales del schema se aplican.
func (h *Handler) extract(r *http.Request) (map[string]any, error) {
	props := make(map[string]any, len(h.locations))

	var (
		body     []byte
		bodyRead bool
	)
	readBody := func() ([]byte, error) {
		if bodyRead {
			return body, nil
		}
		bodyRead = true
		if r.Body == nil {
			return nil, nil
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			return nil, apierror.BadRequest("body could not be read")
		}
		if len(strings.TrimSpace(string(raw))) > 0 && !gjson.ValidBytes(raw) {
			return nil, apierror.BadRequest("body is not valid json").WithType(apierror.TypeValidation, nil)
		}
		body = raw
		return body, nil
	}

	query := r.URL.Query()

	for prop, loc := range h.locations {
		switch loc.In {
		case InHeader:
			if v := r.Header.Get(loc.Label); v != "" {
				props[prop] = v
			}
		case InQuery:
			if query.Has(loc.Label) {
				props[prop] = query.Get(loc.Label)
			}
		case InParam:
			if v := chi.URLParam(r, loc.Label); v != "" {
				props[prop] = v
			}
		case InBody:
			raw, err := readBody()
			if err != nil {
				return nil, err
			}
			if len(strings.TrimSpace(string(raw))) == 0 {
				continue
			}
			if loc.Label == "" {
				var v any
				if err := json.Unmarshal(raw, &v); err != nil {
					return nil, apierror.BadRequest("body is not valid json").WithType(apierror.TypeValidation, nil)
				}
				props[prop] = v
				continue
			}
			if res := gjson.GetBytes(raw, loc.Label); res.Exists() {
				props[prop] = res.Value()
			}
		}
	}
	return props, nil
}
