package entities

import (
	"fmt"
	"strings"
)

// Lookup is a spatial predicate selecting stored features against a query geometry.
type Lookup string

const (
	LookupBBox       Lookup = "bbox"
	LookupIntersects Lookup = "intersects"
	LookupContains   Lookup = "contains"
	LookupWithin     Lookup = "within"
)

// ParseLookup accepts the lookup names plus the "bboverlaps" alias of bbox.
func ParseLookup(s string) (Lookup, error) {
	switch l := Lookup(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LookupIntersects, nil
	case LookupBBox, LookupIntersects, LookupContains, LookupWithin:
		return l, nil
	case "bboverlaps":
		return LookupBBox, nil
	default:
		return "", fmt.Errorf("%w: unknown spatial lookup %q", ErrInvalid, s)
	}
}
