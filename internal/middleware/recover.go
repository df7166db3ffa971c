package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"resource-api/internal/core/apierror"
	"resource-api/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Recover reemplaza a chi/middleware.Recoverer: loguea el panic con stack y
// responde con el envelope de error en vez de un 500 vacío.
func Recover(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("panic serving request", map[string]any{
					"request_id": chimw.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"panic":      fmt.Sprint(rec),
					"stack":      string(debug.Stack()),
				})
				apierror.Write(w, apierror.Internal("unexpected server error").WithType(apierror.TypeUnknown, nil))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
