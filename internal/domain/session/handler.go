// Package session expone el login con email y password: valida las
// credenciales de un usuario y le emite una api key.
package session

import (
	"context"
	"net/http"

	"resource-api/internal/core/apierror"
	"resource-api/internal/core/handler"
	"resource-api/internal/core/schema"
	"resource-api/internal/domain/users"
)

const Module = "app.session"

// DefaultPermissions de las keys emitidas por login.
var DefaultPermissions = map[string]bool{
	"user.user.get":          true,
	"user.user.search":       true,
	"user.user.updateMySelf": true,
}

type Options struct {
	Users *users.Service
	// SearchUsers y CreateKey son los handlers de user y api-key; se
	// invocan como super usuario.
	SearchUsers *handler.Handler
	CreateKey   *handler.Handler
	Permissions map[string]bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt string         `json:"expiresAt"`
	Author    map[string]any `json:"author"`
}

// NewLoginHandler arma POST /v1/app/session/login. Es público: no pide
// Authorization.
func NewLoginHandler(opts Options) *handler.Handler {
	if opts.Permissions == nil {
		opts.Permissions = DefaultPermissions
	}
	return handler.New(handler.Definition{
		Module:      Module,
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Log in with email and password",
		Description: "Returns a new api key owned by the user.",
		Props: schema.Object(schema.Fields{
			"email":    schema.String().Email(),
			"password": schema.String().Min(1),
		}),
		Response: schema.Object(schema.Fields{
			"token":     schema.String(),
			"expiresAt": schema.Time(),
			"author":    users.Author,
		}),
		Locations: map[string]handler.Location{
			"email":    handler.Body("email"),
			"password": handler.Body("password"),
		},
		Public: true,
		Dependencies: func() map[string]*handler.Handler {
			return map[string]*handler.Handler{
				"searchUsers": opts.SearchUsers,
				"createKey":   opts.CreateKey,
			}
		},
		Fn: login(opts),
	})
}

// login godoc
// @Summary Login
// @Description Valida email y password y emite una api key con los permisos de sesión
// @Tags session
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credenciales"
// @Success 200 {object} loginResponse
// @Failure 400 {object} map[string]any "props are invalid"
// @Failure 401 {object} map[string]any "invalid credentials"
// @Router /v1/app/session/login [post]
func login(opts Options) handler.Func {
	return func(ctx context.Context, props map[string]any, deps handler.Deps) (map[string]any, error) {
		email, _ := props["email"].(string)
		password, _ := props["password"].(string)

		found, err := deps["searchUsers"].AsSuper(ctx, map[string]any{
			"filter": []any{users.EmailFilter(email)},
			"limit":  1.0,
		})
		if err != nil {
			return nil, err
		}
		hits, _ := found["hits"].([]any)
		if len(hits) == 0 {
			return nil, apierror.Unauthorized("invalid credentials")
		}
		hit, _ := hits[0].(map[string]any)

		user, err := opts.Users.CheckPassword(ctx, hit["id"], password)
		if err != nil {
			return nil, err
		}

		perms := make(map[string]any, len(opts.Permissions))
		for k, v := range opts.Permissions {
			perms[k] = v
		}
		key, err := deps["createKey"].AsSuper(ctx, map[string]any{
			"data": map[string]any{
				"author":      users.AuthorOf(user),
				"permissions": perms,
			},
		})
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"token":     key["id"],
			"expiresAt": key["expiresAt"],
			"author":    key["author"],
		}, nil
	}
}
