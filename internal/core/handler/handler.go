// Package handler despacha un endpoint declarativo: extrae las props del
// request, las valida, controla permisos, ejecuta la función y valida la
// respuesta.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/permissions"
	"resource-api/internal/core/schema"
	"resource-api/internal/platform/logger"
)

// Func es la lógica del endpoint. props ya está validado; deps son los
// handlers declarados como dependencia, listos para invocar.
type Func func(ctx context.Context, props map[string]any, deps Deps) (map[string]any, error)

type Deps map[string]Prepared

type Definition struct {
	// Module identifica al endpoint ("user.user"). Es el prefijo de los
	// permisos y, con "." -> "/", el prefijo de la ruta.
	Module string
	Method string
	// Path relativo al módulo, con params estilo chi ("/{id}").
	Path string

	Summary     string
	Description string

	Props     *schema.ObjectSchema
	Response  *schema.ObjectSchema
	Locations map[string]Location

	Permissions permissions.Definition

	// Public acepta requests sin credenciales válidas; corren con un
	// contexto anónimo.
	Public bool

	Fn Func

	// Dependencies se evalúa en cada request, así dos handlers pueden
	// depender uno del otro.
	Dependencies func() map[string]*Handler
}

type Handler struct {
	def       Definition
	id        string
	locations map[string]Location
	perms     permissions.Permissions
	log       logger.Logger
}

// New valida la definición. Una prop sin location es un error de
// programación y hace panic.
func New(def Definition) *Handler {
	if def.Module == "" || def.Method == "" || def.Fn == nil {
		panic("handler: module, method and fn are required")
	}
	if def.Path == "" {
		def.Path = "/"
	}
	if def.Props == nil {
		def.Props = schema.Object(schema.Fields{})
	}
	if def.Response == nil {
		panic(fmt.Sprintf("handler %s %s: response schema is required", def.Method, def.Module))
	}
	def.Method = strings.ToUpper(def.Method)

	for _, key := range def.Props.Keys() {
		if _, ok := def.Locations[key]; !ok {
			panic(fmt.Sprintf("handler %s %s%s: prop %q has no location", def.Method, def.Module, def.Path, key))
		}
	}

	return &Handler{
		def:       def,
		id:        ID(def.Method, def.Module, def.Path),
		locations: resolveLocations(def.Locations),
		perms:     permissions.Build(def.Permissions, def.Module),
		log:       logger.Nop(),
	}
}

// ID es estable entre arranques: depende sólo de método, módulo y path.
func ID(method, module, path string) string {
	raw := strings.ToUpper(method) + ":" + modulePath(module) + path
	return "ph-" + base64.StdEncoding.EncodeToString([]byte(raw))
}

func modulePath(module string) string {
	return strings.ReplaceAll(module, ".", "/")
}

func (h *Handler) ID() string                           { return h.id }
func (h *Handler) Method() string                       { return h.def.Method }
func (h *Handler) Module() string                       { return h.def.Module }
func (h *Handler) Path() string                         { return h.def.Path }
func (h *Handler) Summary() string                      { return h.def.Summary }
func (h *Handler) Public() bool                         { return h.def.Public }
func (h *Handler) Permissions() permissions.Permissions { return h.perms }
func (h *Handler) Props() *schema.ObjectSchema          { return h.def.Props }
func (h *Handler) Response() *schema.ObjectSchema       { return h.def.Response }

// FullPath es la ruta montada: /v1/<módulo con "/">/<path>. Un path "/" no
// deja barra final.
func (h *Handler) FullPath() string {
	base := "/v1/" + modulePath(h.def.Module)
	if h.def.Path == "/" {
		return base
	}
	return base + h.def.Path
}

func (h *Handler) SetLogger(log logger.Logger) {
	if log == nil {
		log = logger.Nop()
	}
	h.log = log.With(map[string]any{"handler": h.def.Method + " " + h.FullPath()})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.extract(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	props, err := schema.ParseObject(h.def.Props, raw, schema.Options{Coerce: true})
	if err != nil {
		h.fail(w, apierror.BadRequest("props are invalid").WithType(apierror.TypeValidation, issues(err)))
		return
	}

	caller, err := apicontext.FromRequest(r.Context())
	if err != nil {
		if !h.def.Public {
			h.fail(w, err)
			return
		}
		caller = apicontext.Anonymous()
	}

	out, err := h.run(r.Context(), props, caller, true)
	if err != nil {
		h.fail(w, err)
		return
	}

	body := make(map[string]any, len(out)+1)
	for k, v := range out {
		body[k] = v
	}
	body["error"] = false
	writeJSON(w, r, http.StatusOK, body)
}

// run controla permisos (si checkPerms), arma las dependencias, ejecuta Fn y
// valida la respuesta.
func (h *Handler) run(ctx context.Context, props map[string]any, caller *apicontext.Context, checkPerms bool) (map[string]any, error) {
	if checkPerms {
		if missing := h.perms.Check(func(key string) bool { return caller.HasPermission(key) }); len(missing) > 0 {
			return nil, apierror.Unauthorized("missing permissions: " + strings.Join(missing, ", "))
		}
	}

	deps := Deps{}
	if h.def.Dependencies != nil {
		for name, dep := range h.def.Dependencies() {
			deps[name] = dep.Prepare(caller)
		}
	}

	out, err := h.def.Fn(apicontext.With(ctx, caller), props, deps)
	if err != nil {
		return nil, err
	}

	resp, err := schema.ParseObject(h.def.Response, out, schema.Options{})
	if err != nil {
		h.log.Error("response does not match its schema", map[string]any{"err": err})
		return nil, apierror.Internal("servers response is malformed").WithType(apierror.TypeValidation, issues(err))
	}
	return resp, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	apiErr := apierror.From(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", map[string]any{"status": apiErr.Status, "err": err})
	}
	apierror.Write(w, apiErr)
}

// ---------------------------------------------------------------------------
// dependencias

// Prepared es un handler listo para ser llamado desde otro handler, con el
// contexto del request original.
type Prepared struct {
	h      *Handler
	caller *apicontext.Context
}

// Prepare ata el handler al contexto del llamador.
func (h *Handler) Prepare(caller *apicontext.Context) Prepared {
	return Prepared{h: h, caller: caller}
}

// AsOriginal ejecuta con el contexto del llamador; los permisos propios del
// handler se controlan igual que en un request.
func (p Prepared) AsOriginal(ctx context.Context, props map[string]any) (map[string]any, error) {
	return p.call(ctx, props, p.caller, true)
}

// AsSuper ejecuta como super usuario, sin control de permisos.
func (p Prepared) AsSuper(ctx context.Context, props map[string]any) (map[string]any, error) {
	return p.call(ctx, props, apicontext.SuperUser(), false)
}

func (p Prepared) call(ctx context.Context, raw map[string]any, caller *apicontext.Context, checkPerms bool) (map[string]any, error) {
	if p.h == nil {
		return nil, apierror.Internal("dependency is not mounted")
	}
	props, err := schema.ParseObject(p.h.def.Props, raw, schema.Options{})
	if err != nil {
		p.h.log.Error("dependency called with invalid props", map[string]any{"err": err})
		return nil, apierror.Internal("dependency props are invalid").WithType(apierror.TypeValidation, issues(err))
	}
	return p.h.run(ctx, props, caller, checkPerms)
}

// ---------------------------------------------------------------------------

// writeJSON indenta si viene ?pretty (distinto de "false") o, sin el param,
// si el cliente parece un navegador.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if wantsPretty(r) {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(body)
}

func wantsPretty(r *http.Request) bool {
	q := r.URL.Query()
	if q.Has("pretty") {
		return q.Get("pretty") != "false"
	}
	return strings.Contains(r.UserAgent(), "Mozilla")
}

func issues(err error) any {
	var se *schema.Error
	if errors.As(err, &se) {
		return se.Issues
	}
	return err.Error()
}
