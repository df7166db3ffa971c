package core

import (
	"encoding/json"
	"net/http"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/handler"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/", rootHandler(svc))

	r.Route("/v1/core", func(cr chi.Router) {
		cr.Get("/health", healthHandler(svc))

		// Introspección: requiere una credencial válida
		cr.Group(func(ar chi.Router) {
			ar.Use(requireContext)
			ar.Get("/handler", listHandlersHandler(svc))
			ar.Get("/handler/{id}", getHandlerHandler(svc))
			ar.Get("/handler/{id}/curl", curlHandler(svc))
			ar.Get("/permissions", permissionsHandler(svc))
		})
	})
}

type rootResponse struct {
	Version string `json:"version"`
	StartID string `json:"startId"`
}

type handlerListResponse struct {
	Handlers []string `json:"handlers"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

type curlResponse struct {
	Curl string `json:"curl"`
}

// rootHandler godoc
// @Summary Versión del servicio
// @Description Devuelve la versión y un id que cambia en cada arranque del proceso
// @Tags core
// @Produce json
// @Success 200 {object} rootResponse
// @Router / [get]
func rootHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rootResponse{Version: svc.Version(), StartID: svc.StartID()})
	}
}

// healthHandler godoc
// @Summary Estado del servicio
// @Description Hace ping al document store y al cache e informa goroutines y heap. Responde 503 si alguna dependencia falla.
// @Tags core
// @Produce json
// @Success 200 {object} Health
// @Failure 503 {object} Health
// @Router /v1/core/health [get]
func healthHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := svc.Health(r.Context())
		status := http.StatusOK
		if !h.OK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// listHandlersHandler godoc
// @Summary Listar handlers
// @Description Ids de todos los handlers montados
// @Tags core
// @Produce json
// @Param Authorization header string true "Bearer <api key o master key>"
// @Success 200 {object} handlerListResponse
// @Failure 401 {object} map[string]any "unauthorized"
// @Router /v1/core/handler [get]
func listHandlersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, handlerListResponse{Handlers: svc.reg.HandlerIDs()})
	}
}

// getHandlerHandler godoc
// @Summary Describir un handler
// @Description Método, ruta, permisos, ubicación de cada prop y JSON schema de props y respuesta
// @Tags core
// @Produce json
// @Param Authorization header string true "Bearer <api key o master key>"
// @Param id path string true "Id del handler"
// @Success 200 {object} handler.Export
// @Failure 401 {object} map[string]any "unauthorized"
// @Failure 404 {object} map[string]any "handler not found"
// @Router /v1/core/handler/{id} [get]
func getHandlerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := findHandler(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, h.Export())
	}
}

// curlHandler godoc
// @Summary Comando curl de un handler
// @Description Arma un curl de ejemplo con los valores vacíos de cada prop
// @Tags core
// @Produce json
// @Param Authorization header string true "Bearer <api key o master key>"
// @Param id path string true "Id del handler"
// @Success 200 {object} curlResponse
// @Failure 401 {object} map[string]any "unauthorized"
// @Failure 404 {object} map[string]any "handler not found"
// @Router /v1/core/handler/{id}/curl [get]
func curlHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := findHandler(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, curlResponse{Curl: h.Curl(svc.host)})
	}
}

// permissionsHandler godoc
// @Summary Catálogo de permisos
// @Description Todas las keys de permiso que algún handler consulta
// @Tags core
// @Produce json
// @Param Authorization header string true "Bearer <api key o master key>"
// @Success 200 {object} permissionsResponse
// @Failure 401 {object} map[string]any "unauthorized"
// @Router /v1/core/permissions [get]
func permissionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, permissionsResponse{Permissions: svc.reg.Permissions()})
	}
}

func findHandler(w http.ResponseWriter, r *http.Request, svc *Service) (*handler.Handler, bool) {
	h, ok := svc.reg.Handler(chi.URLParam(r, "id"))
	if !ok {
		apierror.Write(w, apierror.NotFound("handler not found"))
		return nil, false
	}
	return h, true
}

// requireContext corta con 401 si el request no trae una credencial válida.
func requireContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := apicontext.FromRequest(r.Context()); err != nil {
			apierror.Write(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
