package apikeys

import (
	"resource-api/internal/core/handler"
	"resource-api/internal/core/permissions"
	"resource-api/internal/core/resource"
)

// NewHandlers arma /v1/app/api-key. Modificar una key pide update y create:
// quien edita permisos tiene que poder crear keys.
func NewHandlers(svc *Service) resource.Handlers {
	return svc.res.NewHandlers(resource.HandlerOptions{
		Module:       Module,
		CreateSchema: inputSchema,
		BeforeCreate: svc.beforeCreate,
		Permissions: map[string]permissions.Definition{
			"update": permissions.Of("update", "create"),
		},
		SearchLocations: map[string]handler.Location{
			"limit":  handler.Query("l"),
			"offset": handler.Query("o"),
		},
	})
}
