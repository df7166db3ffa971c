// Package core expone los endpoints de introspección del servicio: salud,
// catálogo de handlers y de permisos.
package core

import (
	"context"
	"runtime"
	"time"

	"resource-api/internal/core/registry"
	"resource-api/internal/ports/cache"
	"resource-api/internal/ports/docstore"

	"github.com/google/uuid"
)

const pingTimeout = 2 * time.Second

type Service struct {
	reg     *registry.Registry
	store   docstore.Store
	cache   cache.Cache // puede ser nil
	host    string
	version string
	startID string
	started time.Time
}

type Options struct {
	Registry *registry.Registry
	Store    docstore.Store
	Cache    cache.Cache
	// Host para los comandos curl.
	Host    string
	Version string
}

func NewService(opts Options) *Service {
	return &Service{
		reg:     opts.Registry,
		store:   opts.Store,
		cache:   opts.Cache,
		host:    opts.Host,
		version: opts.Version,
		startID: uuid.NewString(),
		started: time.Now(),
	}
}

// Health es el resultado de /v1/core/health.
type Health struct {
	OK         bool              `json:"ok"`
	Checks     map[string]string `json:"checks"`
	Goroutines int               `json:"goroutines"`
	HeapAlloc  uint64            `json:"heapAlloc"`
	Uptime     string            `json:"uptime"`
}

func (s *Service) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	h := Health{OK: true, Checks: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			h.OK = false
			h.Checks[name] = err.Error()
			return
		}
		h.Checks[name] = "ok"
	}
	check("store", s.store.Ping)
	if s.cache != nil {
		check("cache", s.cache.Ping)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	h.Goroutines = runtime.NumGoroutine()
	h.HeapAlloc = mem.HeapAlloc
	h.Uptime = time.Since(s.started).Round(time.Second).String()
	return h
}

func (s *Service) Version() string { return s.version }

// StartID identifica esta instancia del proceso; cambia en cada arranque.
func (s *Service) StartID() string { return s.startID }
