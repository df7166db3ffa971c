package users

import (
	"context"
	"net/http"
	"strings"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/resource"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost del hash bcrypt.
const PasswordCost = 10

type Service struct {
	res *resource.Resource
}

func NewService(ctx context.Context, deps resource.Deps) (*Service, error) {
	res, err := resource.New(ctx, resource.Config{
		Name:        Name,
		Description: "Users of the api. The password is stored as a bcrypt hash and never returned.",
		Schema:      Schema,
		Secrets:     map[string]any{"password": secret},
		Dependencies: map[string]resource.Dependency{
			"author": {Resource: Name, Transform: AuthorOf},
		},
	}, deps)
	if err != nil {
		return nil, err
	}
	return &Service{res: res}, nil
}

func (s *Service) Resource() *resource.Resource { return s.res }

// CheckPassword lee el usuario crudo (las búsquedas devuelven el password
// redactado) y compara el hash.
func (s *Service) CheckPassword(ctx context.Context, id any, password string) (resource.Document, error) {
	user, err := s.res.Lookup(ctx, id)
	if err != nil {
		return nil, errInvalidCredentials()
	}
	hash, _ := user["password"].(string)
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, errInvalidCredentials()
	}
	return user, nil
}

// EmailFilter es la condición de búsqueda por email exacto.
func EmailFilter(email string) string {
	return `email = "` + email + `"`
}

func errInvalidCredentials() error {
	return apierror.Unauthorized("invalid credentials")
}

// beforeCreate hashea el password y deriva name.
func (s *Service) beforeCreate(_ context.Context, data map[string]any) (map[string]any, error) {
	out := cloneData(data)

	if err := hashPassword(out); err != nil {
		return nil, err
	}
	if _, ok := out["password"]; !ok {
		out["password"] = nil
	}
	out["name"] = fullName(out["firstname"], out["lastname"])
	return out, nil
}

// beforeUpdate controla updateMySelf: sin user.user.update sólo se puede
// modificar el usuario dueño de la api key.
func (s *Service) beforeUpdate(ctx context.Context, id any, data map[string]any) (map[string]any, error) {
	caller, _ := apicontext.From(ctx)
	if !caller.HasPermission(Module + ".update") {
		self, ok := caller.AuthorID()
		if !ok || resource.FormatID(self) != resource.FormatID(id) {
			return nil, apierror.Unauthorized("missing permissions: " + Module + ".update")
		}
	}

	out := cloneData(data)
	if err := hashPassword(out); err != nil {
		return nil, err
	}

	first, hasFirst := out["firstname"]
	last, hasLast := out["lastname"]
	if hasFirst || hasLast {
		prev, err := s.res.Lookup(ctx, id)
		if e, ok := apierror.As(err); ok && e.Status == http.StatusNotFound {
			prev, err = resource.Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !hasFirst {
			first = prev["firstname"]
		}
		if !hasLast {
			last = prev["lastname"]
		}
		out["name"] = fullName(first, last)
	}
	return out, nil
}

func hashPassword(data map[string]any) error {
	pw, ok := data["password"].(string)
	if !ok {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), PasswordCost)
	if err != nil {
		return apierror.Internal("could not hash password").Wrap(err)
	}
	data["password"] = string(hash)
	return nil
}

func fullName(first, last any) string {
	f, _ := first.(string)
	l, _ := last.(string)
	return strings.TrimSpace(f + " " + l)
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	return out
}
