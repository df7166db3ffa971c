package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
master_key: from-file
index_prefix: test-
store:
  driver: elasticsearch
  elastic_url: http://es:9200
  elastic_user: elastic
  elastic_password: secret
cache:
  driver: redis
  ttl: 5m
`), 0o600))

	t.Setenv("API_MASTER_KEY", "from-env")
	t.Setenv("CACHE_TTL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "from-env", cfg.MasterKey)
	assert.Equal(t, "test-", cfg.IndexPrefix)
	assert.Equal(t, StoreElasticsearch, cfg.Store.Driver)
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidateListsAllMissing(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = StoreElasticsearch
	cfg.Store.ElasticUser = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_MASTER_KEY")
	assert.Contains(t, err.Error(), "ELASTIC_USER")
	assert.Contains(t, err.Error(), "ELASTIC_PASSWORD")
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.MasterKey = "x"
	cfg.Store.Driver = "sqlite"

	assert.EqualError(t, cfg.Validate(), `config: unknown store driver "sqlite"`)
}
