// Package config carga la configuración del servicio.
//
// Orden de precedencia (de menor a mayor):
//   - valores por defecto
//   - archivo YAML (CONFIG_FILE o --config)
//   - archivo .env (no pisa variables ya definidas)
//   - variables de entorno
//   - flags de línea de comando (se aplican en cmd/api)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type StoreDriver string

const (
	StoreMemory        StoreDriver = "memory"
	StorePostgres      StoreDriver = "postgres"
	StoreMongo         StoreDriver = "mongo"
	StoreElasticsearch StoreDriver = "elasticsearch"
)

type CacheDriver string

const (
	CacheMemory CacheDriver = "memory"
	CacheRedis  CacheDriver = "redis"
)

type Config struct {
	Port int `yaml:"port"`

	// Host se usa para generar comandos curl de ejemplo.
	Host string `yaml:"host"`

	// MasterKey otorga todos los permisos al bearer que la presente.
	MasterKey string `yaml:"master_key"`

	// IndexPrefix se antepone a cada índice/colección.
	IndexPrefix string `yaml:"index_prefix"`

	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`

	// Postgres
	DSN string `yaml:"dsn"`

	// MongoDB
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// Elasticsearch
	ElasticURL      string `yaml:"elastic_url"`
	ElasticUser     string `yaml:"elastic_user"`
	ElasticPassword string `yaml:"elastic_password"`
}

type CacheConfig struct {
	Driver   CacheDriver   `yaml:"driver"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"` // 0 = deshabilitado
	Burst int     `yaml:"burst"`
}

func Default() Config {
	return Config{
		Port: 8080,
		Host: "http://localhost:8080",
		Store: StoreConfig{
			Driver:        StoreMemory,
			MongoDatabase: "resource-api",
			ElasticURL:    "http://localhost:9200",
		},
		Cache: CacheConfig{
			Driver:   CacheMemory,
			RedisURL: "redis://localhost:6379",
			TTL:      time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			Burst: 20,
		},
	}
}

// Load arma la configuración. path puede venir vacío; en ese caso se usa
// CONFIG_FILE si existe.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if strings.TrimSpace(path) != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// .env es opcional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			cfg.Port = port
		}
	}

	setString("HOST", &cfg.Host)
	setString("API_MASTER_KEY", &cfg.MasterKey)
	setString("INDEX_PREFIX", &cfg.IndexPrefix)

	if v := strings.TrimSpace(os.Getenv("STORE_DRIVER")); v != "" {
		cfg.Store.Driver = StoreDriver(strings.ToLower(v))
	}
	setString("DB_DSN", &cfg.Store.DSN)
	setString("MONGO_URI", &cfg.Store.MongoURI)
	setString("MONGO_DATABASE", &cfg.Store.MongoDatabase)
	setString("ELASTIC_URL", &cfg.Store.ElasticURL)
	setString("ELASTIC_USER", &cfg.Store.ElasticUser)
	setString("ELASTIC_PASSWORD", &cfg.Store.ElasticPassword)

	if v := strings.TrimSpace(os.Getenv("CACHE_DRIVER")); v != "" {
		cfg.Cache.Driver = CacheDriver(strings.ToLower(v))
	}
	setString("REDIS_URL", &cfg.Cache.RedisURL)
	if v := strings.TrimSpace(os.Getenv("CACHE_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CACHE_TTL: %w", err))
		} else {
			cfg.Cache.TTL = ttl
		}
	}

	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
		} else {
			cfg.RateLimit.RPS = rps
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST: %w", err))
		} else {
			cfg.RateLimit.Burst = burst
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate revisa que estén todas las settings requeridas por los drivers
// elegidos. Reporta todas las faltantes juntas.
func (c Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.MasterKey) == "" {
		missing = append(missing, "API_MASTER_KEY")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			missing = append(missing, "DB_DSN")
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
		if c.Store.MongoDatabase == "" {
			missing = append(missing, "MONGO_DATABASE")
		}
	case StoreElasticsearch:
		if c.Store.ElasticURL == "" {
			missing = append(missing, "ELASTIC_URL")
		}
		if c.Store.ElasticUser == "" {
			missing = append(missing, "ELASTIC_USER")
		}
		if c.Store.ElasticPassword == "" {
			missing = append(missing, "ELASTIC_PASSWORD")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("undefined environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Addr devuelve la dirección de escucha para http.Server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
