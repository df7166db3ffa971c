package apikeys

import (
	"context"
	"net/http"
	"time"

	"resource-api/internal/core/apierror"
	"resource-api/internal/core/resource"
	"resource-api/internal/domain/users"
)

type Service struct {
	res *resource.Resource
	now func() time.Time
}

func NewService(ctx context.Context, deps resource.Deps) (*Service, error) {
	res, err := resource.New(ctx, resource.Config{
		Name:        Name,
		Description: "Api keys. Send the id as `Authorization: Bearer <id>`.",
		Schema:      Schema,
		Dependencies: map[string]resource.Dependency{
			"author": {Resource: users.Name, Transform: users.AuthorOf},
		},
	}, deps)
	if err != nil {
		return nil, err
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{res: res, now: now}, nil
}

func (s *Service) Resource() *resource.Resource { return s.res }

// LookupKey implementa apicontext.KeyStore: el registro crudo, found=false
// si no existe.
func (s *Service) LookupKey(ctx context.Context, id string) (map[string]any, bool, error) {
	doc, err := s.res.Lookup(ctx, id)
	if e, ok := apierror.As(err); ok && e.Status == http.StatusNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Service) beforeCreate(_ context.Context, data map[string]any) (map[string]any, error) {
	if v, ok := data["expiresAt"]; ok && v != nil {
		return data, nil
	}
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["expiresAt"] = s.now().Add(DefaultTTL).UTC()
	return out, nil
}
