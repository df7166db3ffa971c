package middleware

import (
	"net/http"
	"time"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLog loguea cada request al terminar. El bearer va censurado.
func RequestLog(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"request_id":  chimw.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      r.RemoteAddr,
			}
			if bearer := apicontext.BearerToken(r.Header.Get("Authorization")); bearer != "" {
				fields["bearer"] = Censor(bearer)
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("request", fields)
			case status >= http.StatusBadRequest:
				log.Warn("request", fields)
			default:
				log.Info("request", fields)
			}
		})
	}
}

// Censor deja visibles los primeros 4 caracteres.
func Censor(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
