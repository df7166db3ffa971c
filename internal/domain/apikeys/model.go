package apikeys

import (
	"time"

	"resource-api/internal/core/schema"
	"resource-api/internal/domain/users"
)

const (
	Module = "app.api-key"
	Name   = "api-key"

	// DefaultTTL es la vida de una key creada sin expiresAt.
	DefaultTTL = 24 * time.Hour
)

var Schema = schema.Object(schema.Fields{
	"id":          schema.String(),
	"author":      users.Author,
	"permissions": schema.Record(schema.Boolean()),
	"expiresAt":   schema.Time(),
}).Describe("Api keys. The id is the bearer token")

var inputSchema = Schema.Extend(schema.Fields{
	"expiresAt": schema.Optional(schema.Time()),
})
