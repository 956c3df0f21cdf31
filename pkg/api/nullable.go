package api

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field with three states: left out, set to a value, or cleared.
// Left out fields are dropped by the omitzero tag, cleared fields are sent as null.
type Nullable[T any] struct {
	value T
	set   bool
	null  bool
}

// Value returns a field that sets v.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{value: v, set: true}
}

// Null returns a field that clears the stored value.
func Null[T any]() Nullable[T] {
	return Nullable[T]{set: true, null: true}
}

func (n Nullable[T]) IsZero() bool {
	return !n.set
}

func (n Nullable[T]) IsSet() bool {
	return n.set
}

func (n Nullable[T]) IsNull() bool {
	return n.set && n.null
}

// Get returns the value, ok is false when the field is left out or cleared.
func (n Nullable[T]) Get() (T, bool) {
	return n.value, n.set && !n.null
}

// Ptr returns a pointer to a copy of the value, nil when the field is left out or cleared.
func (n Nullable[T]) Ptr() *T {
	if v, ok := n.Get(); ok {
		return &v
	}
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.set || n.null {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Value(v)
	return nil
}
