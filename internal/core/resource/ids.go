package resource

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"resource-api/internal/core/schema"
)

const (
	randomIDLength   = 20
	randomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTVWXYZabcdefghijklmnopqrtvwxyz0123456789"
)

// RandomID genera un id alfanumérico de n caracteres.
func RandomID(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomIDAlphabet[rand.IntN(len(randomIDAlphabet))]
	}
	return string(b)
}

// FormatID lleva un id (string o número) a su forma de key: 3.0 -> "3".
func FormatID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	if f, ok := schema.ToFloat(id); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(id)
}

func (r *Resource) newID() any {
	if r.numericID {
		return float64(r.counter.Next(r.index))
	}
	return RandomID(randomIDLength)
}
