package domain

import (
	"bytes"
	"encoding/json"
)

// Optional representa un valor que puede no haberse especificado.
// "No especificado" es distinto del valor cero: Some(0) y Some("") siguen siendo valores presentes.
type Optional[T any] struct {
	value T
	set   bool
}

// Some crea un Optional presente.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None crea un Optional ausente.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// OptionalOf convierte un puntero: nil => ausente.
func OptionalOf[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get devuelve el valor y si está presente.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsPresent() bool {
	return o.set
}

// OrElse devuelve el valor o def si está ausente.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// ---------------- JSON ----------------

// MarshalJSON serializa un Optional ausente como null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON trata null (o el campo ausente) como no especificado.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
