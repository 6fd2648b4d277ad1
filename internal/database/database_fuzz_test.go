//go:build go1.18

package database

import (
	"testing"
)

// FuzzCoerceVector fuzzes the vector coercion helpers for stability.
func FuzzCoerceVector(f *testing.F) {
	f.Add([]byte{1, 2, 3})
	f.Add([]byte{})
	f.Add([]byte{0xff, 0x00})
	f.Add([]byte("[1, 2.5, \"3\"]"))
	f.Fuzz(func(t *testing.T, b []byte) {
		_, _, _ = coerceToFloat32Slice(b)
		_, _, _ = coerceToFloat32Slice([]any{string(b), len(b)})
		_, _, _ = coerceToFloat32Slice([]byte(nil))
		_, _ = decodeVector(b, 4)
		_, _ = decodeVector(string(b), 4)
		// No panics should occur.
	})
}
