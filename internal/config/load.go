package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "QUERYLAB_"

func defaults() map[string]any {
	return map[string]any{
		"http.port": 8080,
		"log.level": "info",

		"storage.driver":       DriverSQLite,
		"storage.sqlite_path":  "./querylab.db",
		"storage.postgres_dsn": "",
		"storage.mongo_uri":    "",
		"storage.mongo_db":     "querylab",

		"cache.redis_addr": "",
		"cache.ttl":        "5m",

		"events.use_kafka":            false,
		"events.kafka_brokers":        []string{"localhost:9092"},
		"events.consumer_group":       "querylab-analytics",
		"events.breaker.max_failures": 5,
		"events.breaker.open_timeout": "30s",

		"outbox.period": "1s",
		"outbox.limit":  10,

		"analytics.clickhouse_addr": "",
		"analytics.clickhouse_db":   "default",
	}
}

// Load aplica por orden: valores por defecto, el YAML de path (si path no está vacío)
// y las variables de entorno QUERYLAB_*.
//
//	QUERYLAB_HTTP_PORT            -> http.port
//	QUERYLAB_STORAGE_SQLITE_PATH  -> storage.sqlite_path
//	QUERYLAB_EVENTS_KAFKA_BROKERS -> events.kafka_brokers (separados por comas)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	// Las claves conocidas resuelven la ambigüedad entre "_" de anidación y "_" dentro del nombre.
	envLookup := buildEnvLookup(k.Keys())
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if koanfKey, ok := envLookup[key]; ok {
				if koanfKey == "events.kafka_brokers" {
					return koanfKey, strings.Split(value, ",")
				}
				return koanfKey, value
			}
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func buildEnvLookup(keys []string) map[string]string {
	lookup := make(map[string]string, len(keys))
	for _, key := range keys {
		lookup[strings.ReplaceAll(key, ".", "_")] = key
	}
	return lookup
}
