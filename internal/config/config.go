package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Cache     CacheConfig     `koanf:"cache"`
	Events    EventsConfig    `koanf:"events"`
	Outbox    OutboxConfig    `koanf:"outbox"`
	Analytics AnalyticsConfig `koanf:"analytics"`
}

type HTTPConfig struct {
	Port int `koanf:"port"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// StorageConfig elige el motor de members/teams/outbox.
type StorageConfig struct {
	Driver      string `koanf:"driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`
	MongoURI    string `koanf:"mongo_uri"`
	MongoDB     string `koanf:"mongo_db"`
}

// CacheConfig: sin redis_addr se usa la caché en memoria.
type CacheConfig struct {
	RedisAddr string        `koanf:"redis_addr"`
	TTL       time.Duration `koanf:"ttl"`
}

type EventsConfig struct {
	UseKafka      bool          `koanf:"use_kafka"`
	KafkaBrokers  []string      `koanf:"kafka_brokers"`
	ConsumerGroup string        `koanf:"consumer_group"`
	Breaker       BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	MaxFailures int           `koanf:"max_failures"`
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

type OutboxConfig struct {
	Period time.Duration `koanf:"period"`
	Limit  int           `koanf:"limit"`
}

// AnalyticsConfig: sin clickhouse_addr las estadísticas por equipo no están disponibles.
type AnalyticsConfig struct {
	ClickHouseAddr string `koanf:"clickhouse_addr"`
	ClickHouseDB   string `koanf:"clickhouse_db"`
}

// Validate devuelve todos los errores juntos.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path must not be empty"))
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn must not be empty for postgres"))
		}
	case DriverMongoDB:
		if c.Storage.MongoURI == "" || c.Storage.MongoDB == "" {
			errs = append(errs, errors.New("storage.mongo_uri and storage.mongo_db must not be empty for mongodb"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be one of: sqlite, postgres, mongodb; got %q", c.Storage.Driver))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}

	if c.Events.UseKafka && len(c.Events.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("events.kafka_brokers must not be empty when events.use_kafka is true"))
	}
	if c.Events.Breaker.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("events.breaker.max_failures must be >= 1, got %d", c.Events.Breaker.MaxFailures))
	}

	if c.Outbox.Period <= 0 {
		errs = append(errs, errors.New("outbox.period must be positive"))
	}
	if c.Outbox.Limit < 1 {
		errs = append(errs, fmt.Errorf("outbox.limit must be >= 1, got %d", c.Outbox.Limit))
	}

	return errors.Join(errs...)
}
