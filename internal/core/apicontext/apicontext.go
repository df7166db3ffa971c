package apicontext

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"resource-api/internal/core/apierror"
	"resource-api/internal/core/schema"
	"resource-api/internal/platform/logger"
)

type Method string

const (
	MethodMasterKey Method = "master-key"
	MethodAPIKey    Method = "api-key"
	MethodSuperUser Method = "super-user"
	MethodAnonymous Method = "anonymous"
)

// Context es el resultado de autorizar un request. Vive lo que dura el
// request; nunca se persiste.
type Context struct {
	Bearer      string
	Method      Method
	Permissions map[string]bool

	// Author es el dueño de la api key ({id, name}); nil para master/super.
	Author map[string]any

	all bool
}

// SuperUser sólo se construye desde código (hooks, tareas internas,
// dependencias invocadas con AsSuper). Tiene todos los permisos.
func SuperUser() *Context {
	return &Context{Bearer: "master", Method: MethodSuperUser, Permissions: map[string]bool{}, all: true}
}

// Anonymous es el contexto de un endpoint público sin credenciales: ningún
// permiso.
func Anonymous() *Context {
	return &Context{Method: MethodAnonymous, Permissions: map[string]bool{}}
}

func masterKey(bearer string) *Context {
	return &Context{Bearer: bearer, Method: MethodMasterKey, Permissions: map[string]bool{}, all: true}
}

// NewAPIKey arma un contexto con los permisos tal cual vienen del registro.
func NewAPIKey(id string, perms map[string]bool, author map[string]any) *Context {
	if perms == nil {
		perms = map[string]bool{}
	}
	return &Context{Bearer: id, Method: MethodAPIKey, Permissions: perms, Author: author}
}

// HasPermission es true si todas las keys están en true.
func (c *Context) HasPermission(paths ...string) bool {
	if c == nil {
		return false
	}
	if c.all {
		return true
	}
	for _, p := range paths {
		if !c.Permissions[p] {
			return false
		}
	}
	return true
}

// Privileged indica master-key o super-user.
func (c *Context) Privileged() bool { return c != nil && c.all }

// AuthorID devuelve el id del usuario dueño de la api key.
func (c *Context) AuthorID() (any, bool) {
	if c == nil || c.Author == nil {
		return nil, false
	}
	id, ok := c.Author["id"]
	return id, ok && id != nil
}

// ---------------------------------------------------------------------------
// Resolver

// KeyStore busca el registro crudo de una api key.
type KeyStore interface {
	LookupKey(ctx context.Context, id string) (doc map[string]any, found bool, err error)
}

type Resolver struct {
	MasterKey string
	Keys      KeyStore
	Log       logger.Logger
	Now       func() time.Time
}

// Resolve traduce el header Authorization en un Context. Falla cerrado: todo
// error es un 401.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*Context, error) {
	if strings.TrimSpace(authorization) == "" {
		return nil, apierror.Unauthorized("missing authorization header")
	}

	token := BearerToken(authorization)
	if token == "" {
		return nil, apierror.Unauthorized("unauthorized")
	}

	if r.MasterKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(r.MasterKey)) == 1 {
		return masterKey(token), nil
	}

	if r.Keys == nil {
		return nil, apierror.Unauthorized("api key not found")
	}

	doc, found, err := r.Keys.LookupKey(ctx, token)
	if err != nil {
		r.log().Error("api key lookup failed", map[string]any{"err": err})
		return nil, apierror.Unauthorized("unauthorized")
	}
	if !found {
		return nil, apierror.Unauthorized("api key not found")
	}

	expiresAt, ok := parseTime(doc["expiresAt"])
	if !ok || expiresAt.Before(r.now()) {
		return nil, apierror.Unauthorized("api key has expired")
	}

	perms, err := parsePermissions(doc["permissions"])
	if err != nil {
		r.log().Error("api key permissions malformed", map[string]any{"err": err})
		return nil, apierror.Unauthorized("unauthorized")
	}

	author, _ := doc["author"].(map[string]any)
	return NewAPIKey(token, perms, author), nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) log() logger.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.Nop()
}

// BearerToken extrae el token de "Bearer <token>".
func BearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

var permissionMap = schema.Record(schema.Boolean())

func parsePermissions(v any) (map[string]bool, error) {
	if v == nil {
		return map[string]bool{}, nil
	}
	out, err := schema.Parse(permissionMap, v)
	if err != nil {
		return nil, err
	}
	perms := map[string]bool{}
	for k, val := range out.(map[string]any) {
		perms[k] = val.(bool)
	}
	return perms, nil
}

func parseTime(v any) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	out, err := schema.Parse(schema.Time(), v)
	if err != nil {
		return time.Time{}, false
	}
	return out.(time.Time), true
}

// ---------------------------------------------------------------------------
// context.Context helpers

type ctxKey string

const (
	apiCtxKey     ctxKey = "api-context"
	resolutionKey ctxKey = "api-context-resolution"
)

type resolution struct {
	ctx *Context
	err error
}

// With fija el Context que usan los handlers invocados como dependencia y los
// hooks.
func With(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, apiCtxKey, c)
}

func From(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(apiCtxKey).(*Context)
	return c, ok && c != nil
}

// WithResolution guarda el resultado del middleware (contexto o error); el
// handler decide cuándo mirarlo.
func WithResolution(ctx context.Context, c *Context, err error) context.Context {
	return context.WithValue(ctx, resolutionKey, resolution{ctx: c, err: err})
}

// FromRequest devuelve el Context resuelto para el request en curso.
func FromRequest(ctx context.Context) (*Context, error) {
	if c, ok := From(ctx); ok {
		return c, nil
	}
	res, ok := ctx.Value(resolutionKey).(resolution)
	if !ok {
		return nil, apierror.Unauthorized("missing authorization header")
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.ctx, nil
}
