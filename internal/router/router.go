package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"resource-api/internal/core/apicontext"
	"resource-api/internal/core/apierror"
	"resource-api/internal/core/registry"
	"resource-api/internal/core/resource"
	"resource-api/internal/docs"
	"resource-api/internal/domain/apikeys"
	"resource-api/internal/domain/core"
	"resource-api/internal/domain/groups"
	"resource-api/internal/domain/session"
	"resource-api/internal/domain/users"
	"resource-api/internal/middleware"
	"resource-api/internal/platform/config"
	"resource-api/internal/platform/logger"
	"resource-api/internal/platform/metrics"
	"resource-api/internal/platform/tasks"
	"resource-api/internal/ports/cache"
	"resource-api/internal/ports/docstore"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Version del servicio, la pisa el build con -ldflags.
var Version = "dev"

const taskTimeout = 30 * time.Second

type Options struct {
	Config config.Config
	Log    logger.Logger

	// Opcionales: si vienen, pisan los drivers de Config.
	Store docstore.Store
	Cache cache.Cache

	Now func() time.Time
}

// Router es el http.Handler del servicio junto con lo que hay que cerrar al
// apagarlo.
type Router struct {
	http.Handler

	Registry *registry.Registry
	Tasks    *tasks.Runner
	Metrics  *metrics.Metrics

	closers []closer
}

func NewRouter(ctx context.Context, opts Options) (*Router, error) {
	cfg := opts.Config
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	rt := &Router{
		Tasks:   tasks.NewRunner(log, taskTimeout),
		Metrics: metrics.New(),
	}

	store := opts.Store
	if store == nil {
		s, c, err := openStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		store = s
		rt.addCloser(c)
	}
	docCache := opts.Cache
	if docCache == nil {
		c, cl, err := openCache(ctx, cfg.Cache)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		docCache = c
		rt.addCloser(cl)
	}

	counter, err := resource.LoadCounter(ctx, store, cfg.IndexPrefix, rt.Tasks, log)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	deps := resource.Deps{
		Store:       store,
		Cache:       docCache,
		Counter:     counter,
		Log:         log,
		Tasks:       rt.Tasks,
		Metrics:     rt.Metrics,
		Now:         opts.Now,
		IndexPrefix: cfg.IndexPrefix,
	}

	reg, keysSvc, err := mountDomains(ctx, deps, log)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Registry = reg

	if err := docs.Publish(docs.Spec(docs.Info{
		Title:       "resource-api",
		Version:     Version,
		Description: "Declarative REST resources with permissions and denormalized dependencies.",
		Host:        cfg.Host,
	}, reg.Handlers())); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	resolver := &apicontext.Resolver{
		MasterKey: cfg.MasterKey,
		Keys:      keysSvc,
		Log:       log,
		Now:       opts.Now,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLog(log))
	r.Use(rt.Metrics.Instrument)
	if cfg.RateLimit.RPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware)
	}
	r.Use(middleware.AuthContext(resolver))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.New(http.StatusMethodNotAllowed, "method not allowed"))
	})

	r.Handle("/metrics", rt.Metrics.Handler())

	// Docs
	r.Get("/v1/docs/definition", docs.Definition().ServeHTTP)
	r.Get("/v1/docs/*", docs.UI("/v1/docs").ServeHTTP)

	core.RegisterRoutes(r, core.NewService(core.Options{
		Registry: reg,
		Store:    store,
		Cache:    docCache,
		Host:     cfg.Host,
		Version:  Version,
	}))

	// Recursos
	reg.Mount(r)

	rt.Handler = r
	return rt, nil
}

// mountDomains arma los recursos y handlers de cada módulo, en dos pasadas:
// primero se registra todo, después Wire conecta las dependencias.
func mountDomains(ctx context.Context, deps resource.Deps, log logger.Logger) (*registry.Registry, *apikeys.Service, error) {
	reg := registry.New(log)

	usersSvc, err := users.NewService(ctx, deps)
	if err != nil {
		return nil, nil, err
	}
	groupsSvc, err := groups.NewService(ctx, deps)
	if err != nil {
		return nil, nil, err
	}
	keysSvc, err := apikeys.NewService(ctx, deps)
	if err != nil {
		return nil, nil, err
	}

	userHandlers := users.NewHandlers(usersSvc)
	keyHandlers := apikeys.NewHandlers(keysSvc)

	for _, add := range []func() error{
		func() error { return reg.AddResource(users.Name, usersSvc.Resource()) },
		func() error { return reg.AddResource(groups.Name, groupsSvc.Resource()) },
		func() error { return reg.AddResource(apikeys.Name, keysSvc.Resource()) },
		func() error { return reg.AddHandlers(userHandlers.All()...) },
		func() error { return reg.AddHandlers(groups.NewHandlers(groupsSvc).All()...) },
		func() error { return reg.AddHandlers(keyHandlers.All()...) },
		func() error {
			return reg.AddHandlers(session.NewLoginHandler(session.Options{
				Users:       usersSvc,
				SearchUsers: userHandlers.Search,
				CreateKey:   keyHandlers.Create,
			}))
		},
	} {
		if err := add(); err != nil {
			return nil, nil, err
		}
	}

	if err := reg.Wire(); err != nil {
		return nil, nil, err
	}
	return reg, keysSvc, nil
}

func (rt *Router) addCloser(c closer) {
	if c != nil {
		rt.closers = append(rt.closers, c)
	}
}

// Close espera las tareas en segundo plano y cierra las conexiones.
func (rt *Router) Close(ctx context.Context) error {
	rt.Tasks.Wait()
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
