package cache

import (
	"context"
	"strings"
)

// Cache es el puerto de caché clave-valor que usan los servicios (cache-aside).
// Los valores se guardan serializados; Get rellena dest, que debe ser un puntero.
type Cache interface {
	// Get devuelve (false, nil) en un miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set guarda val durante ttlSecs segundos. Con ttlSecs <= 0 se aplica el TTL por defecto del adapter.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error
	Delete(ctx context.Context, key string) error
}

// Key une las partes con ":" (p.ej. Key("member", "id", "…") => "member:id:…").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
