// Package enums holds the string enumerations stored in the database and
// carried on the wire.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of known equal to value.
func parse[T ~string](kind, value string, known []T) (T, error) {
	if i := slices.Index(known, T(value)); i >= 0 {
		return known[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
