package router

import (
	"context"
	"fmt"
	"time"

	memcache "resource-api/internal/adapters/cache/memory"
	rediscache "resource-api/internal/adapters/cache/redis"
	es "resource-api/internal/adapters/storage/elasticsearch"
	mem "resource-api/internal/adapters/storage/memory"
	mg "resource-api/internal/adapters/storage/mongo"
	pg "resource-api/internal/adapters/storage/postgres"
	"resource-api/internal/platform/config"
	"resource-api/internal/platform/httpclient"
	"resource-api/internal/ports/cache"
	"resource-api/internal/ports/docstore"
)

const elasticTimeout = 10 * time.Second

type closer func(ctx context.Context) error

// openStore abre el document store que pide la configuración.
func openStore(ctx context.Context, cfg config.StoreConfig) (docstore.Store, closer, error) {
	switch cfg.Driver {
	case "", config.StoreMemory:
		return mem.NewDocumentStore(), nil, nil

	case config.StorePostgres:
		db, err := pg.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pg.NewDocumentsRepo(db), func(context.Context) error { return db.Close() }, nil

	case config.StoreMongo:
		client, err := mg.Open(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		return mg.NewDocumentsRepo(client.Database(cfg.MongoDatabase)), client.Disconnect, nil

	case config.StoreElasticsearch:
		client, err := httpclient.NewWithBaseURL(cfg.ElasticURL, elasticTimeout)
		if err != nil {
			return nil, nil, err
		}
		if cfg.ElasticUser != "" {
			client = client.WithBasicAuth(cfg.ElasticUser, cfg.ElasticPassword)
		}
		return es.NewDocumentsRepo(client), nil, nil
	}
	return nil, nil, fmt.Errorf("router: unknown store driver %q", cfg.Driver)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, closer, error) {
	switch cfg.Driver {
	case "", config.CacheMemory:
		return memcache.New(memcache.WithTTL(cfg.TTL)), nil, nil

	case config.CacheRedis:
		client, err := rediscache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rediscache.New(client, cfg.TTL), func(context.Context) error { return client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("router: unknown cache driver %q", cfg.Driver)
}
