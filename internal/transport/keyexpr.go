package transport

import (
	"fmt"
	"strings"
)

// ValidateKeyExpr checks that k is a non-empty, '/'-separated list of
// non-empty chunks. "*" matches exactly one chunk and "**" any number of
// chunks; wildcards must occupy a whole chunk.
func ValidateKeyExpr(k string) error {
	if k == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKeyExpr)
	}
	for _, chunk := range strings.Split(k, "/") {
		if chunk == "" {
			return fmt.Errorf("%w: %q has an empty chunk", ErrInvalidKeyExpr, k)
		}
		if strings.Contains(chunk, "*") && chunk != "*" && chunk != "**" {
			return fmt.Errorf("%w: %q mixes wildcards and text in a chunk", ErrInvalidKeyExpr, k)
		}
		if strings.ContainsAny(chunk, "?#$ ") {
			return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidKeyExpr, k)
		}
	}
	return nil
}

// Intersects reports whether some concrete key matches both a and b.
func Intersects(a, b string) bool {
	return intersects(strings.Split(a, "/"), strings.Split(b, "/"))
}

func intersects(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) == 0:
		return onlyDoubleStars(b)
	case len(b) == 0:
		return onlyDoubleStars(a)
	case a[0] == "**":
		return intersects(a[1:], b) || intersects(a, b[1:])
	case b[0] == "**":
		return intersects(a, b[1:]) || intersects(a[1:], b)
	case a[0] == "*" || b[0] == "*" || a[0] == b[0]:
		return intersects(a[1:], b[1:])
	default:
		return false
	}
}

func onlyDoubleStars(chunks []string) bool {
	for _, c := range chunks {
		if c != "**" {
			return false
		}
	}
	return true
}
