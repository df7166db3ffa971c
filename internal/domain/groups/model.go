package groups

import (
	"resource-api/internal/core/schema"
	"resource-api/internal/domain/users"
)

const (
	Module = "user.group"
	Name   = "user-group"
)

var Schema = schema.Object(schema.Fields{
	"id":          schema.Int(),
	"name":        schema.String(),
	"author":      schema.Nullish(users.Author),
	"permissions": schema.Record(schema.Boolean()),
}).Describe("Named sets of permissions")
