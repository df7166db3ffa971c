package resource

import "resource-api/internal/core/schema"

// MaxBulk es el máximo de documentos por bulk create.
const MaxBulk = 200

// Envelope son los campos que el motor agrega a todo documento.
var Envelope = schema.Object(schema.Fields{
	"version":   schema.Number().Min(0),
	"createdAt": schema.Time(),
	"updatedAt": schema.Time(),
})

// Schemas de props y respuestas de cada operación, derivados del schema del
// documento. Los usan los handlers estándar y cualquier handler a medida.

func (r *Resource) PropsGet() *schema.ObjectSchema {
	return schema.Object(schema.Fields{
		"id":    r.IDSchema(),
		"cache": schema.Default(schema.Boolean(), true),
	})
}

func (r *Resource) ResponseGet() *schema.ObjectSchema {
	return r.shape.Extend(schema.Fields{
		"_cache": schema.Boolean(),
		"_index": schema.String(),
	})
}

func PropsSearch() *schema.ObjectSchema {
	return schema.Object(schema.Fields{
		"query":  schema.Default(schema.String(), ""),
		"filter": schema.Optional(schema.Array(schema.Union(schema.String(), schema.Array(schema.String())))),
		"sort":   schema.Optional(schema.Array(schema.String())),
		"limit":  schema.Default(schema.Int().Min(0), 20),
		"offset": schema.Default(schema.Int().Min(0), 0),
		// alias estilo elasticsearch
		"size": schema.Optional(schema.Int().Min(0)),
		"from": schema.Optional(schema.Int().Min(0)),
	})
}

func (r *Resource) ResponseSearch() *schema.ObjectSchema {
	return schema.Object(schema.Fields{
		"hits":  schema.Array(r.shape),
		"total": schema.Optional(schema.Int()),
	})
}

// createData es el body de un create: el documento sin id, con version
// opcional (que se ignora).
func (r *Resource) createData(doc *schema.ObjectSchema) *schema.ObjectSchema {
	return doc.Omit("id").Extend(schema.Fields{
		"version": schema.Optional(schema.Number().Min(0)),
	})
}

// PropsCreate acepta un schema distinto al del recurso (p.ej. sin campos
// derivados); nil usa el del recurso.
func (r *Resource) PropsCreate(doc *schema.ObjectSchema) *schema.ObjectSchema {
	if doc == nil {
		doc = r.cfg.Schema
	}
	return schema.Object(schema.Fields{"data": r.createData(doc)})
}

func (r *Resource) PropsUpdate(doc *schema.ObjectSchema) *schema.ObjectSchema {
	if doc == nil {
		doc = r.cfg.Schema
	}
	return schema.Object(schema.Fields{
		"id":   r.IDSchema(),
		"data": r.createData(doc).Partial(),
	})
}

func (r *Resource) ResponseUpdate() *schema.ObjectSchema {
	return r.shape.Extend(schema.Fields{"_index": schema.String()})
}

func (r *Resource) PropsDelete() *schema.ObjectSchema {
	return schema.Object(schema.Fields{"id": r.IDSchema()})
}

func (r *Resource) ResponseDelete() *schema.ObjectSchema {
	return schema.Object(schema.Fields{
		"_index":  schema.String(),
		"id":      r.IDSchema(),
		"success": schema.Boolean(),
	})
}

func (r *Resource) PropsBulkCreate(doc *schema.ObjectSchema) *schema.ObjectSchema {
	if doc == nil {
		doc = r.cfg.Schema
	}
	return schema.Object(schema.Fields{
		"data": schema.Array(r.createData(doc)).Max(MaxBulk),
	})
}

func ResponseBulkCreate() *schema.ObjectSchema {
	return schema.Object(schema.Fields{
		"created": schema.Int(),
		"errors":  schema.Int(),
	})
}
