package middleware

import (
	"net/http"

	"resource-api/internal/core/apicontext"
)

// AuthContext resuelve el header Authorization y deja el resultado (contexto
// o error) en el request. No corta acá: el handler decide, así un request
// con props inválidas responde 400 antes que 401.
func AuthContext(resolver *apicontext.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			c, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			ctx := apicontext.WithResolution(r.Context(), c, err)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
