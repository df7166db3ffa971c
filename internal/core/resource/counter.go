package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"resource-api/internal/platform/logger"
	"resource-api/internal/platform/tasks"
	"resource-api/internal/ports/docstore"
)

// CounterIndex guarda un documento {id, count} por índice con ids numéricos.
const CounterIndex = "counter"

const counterPage = 1000

// Counter reparte ids numéricos. El valor vive en memoria y se persiste en
// segundo plano; con varias instancias (o un crash antes de persistir) se
// pueden repetir ids.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int

	// persistMu serializa las escrituras para que nunca gane un valor viejo
	persistMu sync.Mutex

	store docstore.Store
	index string
	tasks *tasks.Runner
	log   logger.Logger
}

// LoadCounter crea el índice de contadores y carga los valores actuales.
func LoadCounter(ctx context.Context, store docstore.Store, prefix string, runner *tasks.Runner, log logger.Logger) (*Counter, error) {
	if log == nil {
		log = logger.Nop()
	}
	if runner == nil {
		runner = tasks.NewRunner(log, 0)
	}

	c := &Counter{
		counts: make(map[string]int),
		store:  store,
		index:  prefix + CounterIndex,
		tasks:  runner,
		log:    log,
	}

	if err := store.EnsureIndex(ctx, c.index); err != nil {
		return nil, fmt.Errorf("counter: ensure index: %w", err)
	}

	for from := 0; ; from += counterPage {
		res, err := store.Search(ctx, c.index, docstore.SearchRequest{Size: counterPage, From: from})
		if err != nil {
			return nil, fmt.Errorf("counter: load: %w", err)
		}
		for _, doc := range res.Hits {
			key := FormatID(doc["id"])
			n, _ := toInt(doc["count"])
			if key != "" {
				c.counts[key] = n
			}
		}
		if len(res.Hits) < counterPage {
			break
		}
	}

	log.Info("counters loaded", map[string]any{"count": len(c.counts)})
	return c, nil
}

// Next incrementa y devuelve el contador de key.
func (c *Counter) Next(key string) int {
	c.mu.Lock()
	c.counts[key]++
	n := c.counts[key]
	c.mu.Unlock()

	c.tasks.Go(context.Background(), "counter persist", func(ctx context.Context) error {
		return c.persist(ctx, key)
	})
	return n
}

// Value devuelve el valor actual sin incrementar.
func (c *Counter) Value(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// persist escribe el valor vigente (no el del momento del Next), así la
// última escritura siempre es la más alta.
func (c *Counter) persist(ctx context.Context, key string) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	n := c.Value(key)

	err := c.store.Update(ctx, c.index, key, docstore.Document{"count": n})
	if errors.Is(err, docstore.ErrNotFound) {
		err = c.store.Index(ctx, c.index, key, docstore.Document{"id": key, "count": n})
	}
	return err
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}
