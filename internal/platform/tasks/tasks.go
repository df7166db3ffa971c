package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"resource-api/internal/platform/logger"
)

const DefaultTimeout = 30 * time.Second

// Runner ejecuta trabajos en segundo plano (refresh de cache, propagación a
// dependientes, persistencia de contadores). Los errores y panics se loguean;
// nunca llegan al request que los originó.
type Runner struct {
	log     logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner(log logger.Logger, timeout time.Duration) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{log: log, timeout: timeout}
}

// Go lanza fn con un contexto desacoplado de la cancelación de parent.
func (r *Runner) Go(parent context.Context, name string, fn func(ctx context.Context) error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), r.timeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background task panicked", map[string]any{
					"task":  name,
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				})
			}
		}()

		if err := fn(ctx); err != nil {
			r.log.Error("background task failed", map[string]any{"task": name, "err": err})
		}
	}()
}

// Wait bloquea hasta que terminen todas las tareas lanzadas.
func (r *Runner) Wait() {
	r.wg.Wait()
}
