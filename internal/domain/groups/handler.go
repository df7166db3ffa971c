package groups

import (
	"resource-api/internal/core/handler"
	"resource-api/internal/core/resource"
)

// NewHandlers arma /v1/user/group. La búsqueda usa la forma de elasticsearch:
// size y from en la query, query y sort en el body.
func NewHandlers(svc *Service) resource.Handlers {
	return svc.res.NewHandlers(resource.HandlerOptions{
		Module: Module,
		SearchLocations: map[string]handler.Location{
			"size":  handler.Query("size"),
			"from":  handler.Query("from"),
			"query": handler.Body("query"),
			"sort":  handler.Body("sort"),
		},
	})
}
