package users

import (
	"resource-api/internal/core/handler"
	"resource-api/internal/core/permissions"
	"resource-api/internal/core/resource"
)

// NewHandlers arma los endpoints estándar de /v1/user/user.
//
// Update acepta user.user.update o user.user.updateMySelf; con el segundo
// sólo sobre el propio usuario. Search lee limit/offset de ?l= y ?o=.
func NewHandlers(svc *Service) resource.Handlers {
	return svc.res.NewHandlers(resource.HandlerOptions{
		Module:       Module,
		CreateSchema: inputSchema,
		BeforeCreate: svc.beforeCreate,
		BeforeUpdate: svc.beforeUpdate,
		Permissions: map[string]permissions.Definition{
			"update": permissions.Of([]string{"update", "updateMySelf"}),
		},
		SearchLocations: map[string]handler.Location{
			"limit":  handler.Query("l"),
			"offset": handler.Query("o"),
		},
	})
}
