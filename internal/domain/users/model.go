package users

import (
	"resource-api/internal/core/resource"
	"resource-api/internal/core/schema"
)

const (
	// Module es el prefijo de rutas y permisos: /v1/user/user, user.user.*
	Module = "user.user"
	// Name es el nombre del recurso (y del índice).
	Name = "user"
)

// Author es la copia desnormalizada de un usuario que guardan otros
// recursos en su campo "author".
var Author = schema.Object(schema.Fields{
	"id":   schema.Int(),
	"name": schema.String(),
})

// AuthorOf arma el valor de un campo author a partir del usuario.
func AuthorOf(doc resource.Document) any {
	return map[string]any{"id": doc["id"], "name": doc["name"]}
}

var Schema = schema.Object(schema.Fields{
	"id":        schema.Int(),
	"name":      schema.String(),
	"firstname": schema.String(),
	"lastname":  schema.String(),
	"author":    schema.Nullish(Author),
	"title":     schema.Optional(schema.String()),
	"password":  schema.Nullish(schema.String().Min(4)),
	"email":     schema.Nullish(schema.String().Email()),
}).Describe("Users of the api")

// inputSchema es lo que acepta create/update: name se deriva de firstname y
// lastname.
var inputSchema = Schema.Omit("name")

const secret = "**secret**"
