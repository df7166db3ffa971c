package groups

import (
	"context"
	"fmt"

	"resource-api/internal/core/resource"
	"resource-api/internal/domain/users"
	"resource-api/internal/platform/logger"
)

type Service struct {
	res *resource.Resource
	log logger.Logger
}

func NewService(ctx context.Context, deps resource.Deps) (*Service, error) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{log: log.With(map[string]any{"module": Module})}

	res, err := resource.New(ctx, resource.Config{
		Name:        Name,
		Description: "Groups of permissions that can be copied into api keys.",
		Schema:      Schema,
		Dependencies: map[string]resource.Dependency{
			"author": {Resource: users.Name, Transform: users.AuthorOf},
		},
		Hooks: resource.Hooks{OnUpdate: s.onUpdate},
	}, deps)
	if err != nil {
		return nil, err
	}
	s.res = res
	return s, nil
}

func (s *Service) Resource() *resource.Resource { return s.res }

// onUpdate deja pasar la escritura y registra los permisos que quedaron.
func (s *Service) onUpdate(ctx context.Context, p resource.UpdateProps, next resource.UpdateFunc) (resource.Document, error) {
	doc, err := next(ctx, p)
	if err != nil {
		return nil, err
	}
	perms, _ := doc["permissions"].(map[string]any)
	s.log.Debug(fmt.Sprintf("group %v saved with %d permissions", doc["id"], len(perms)), nil)
	return doc, nil
}
