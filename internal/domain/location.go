package domain

import (
	"maps"
	"slices"
	"strconv"
)

// Location types recorded with every persisted location.
const (
	LocationTypeDefault = "default"
	LocationTypeIndexed = "indexed"
)

// Well-known location property keys.
const (
	LocationPropPath  = "PATH"
	LocationPropIndex = "INDEX"
)

// Location describes where a target physically resides as a typed property
// bag. It is replaced as a whole, never edited in place once persisted.
type Location struct {
	Type       string
	Properties map[string]string
}

// NewDefaultLocation returns a location pointing at a path.
func NewDefaultLocation(path string) *Location {
	return &Location{
		Type:       LocationTypeDefault,
		Properties: map[string]string{LocationPropPath: path},
	}
}

// NewIndexedLocation returns the location of the index-th element inside
// parent, for example a column inside a CSV file.
func NewIndexedLocation(index int, parent *Location) *Location {
	props := map[string]string{LocationPropIndex: strconv.Itoa(index)}
	if parent != nil {
		if p, ok := parent.Properties[LocationPropPath]; ok {
			props[LocationPropPath] = p
		}
	}
	return &Location{Type: LocationTypeIndexed, Properties: props}
}

// Get returns the value of a property, or "" if absent.
func (l *Location) Get(key string) string {
	if l == nil {
		return ""
	}
	return l.Properties[key]
}

// SortedKeys returns the property keys in ascending order, the order in which
// properties are persisted.
func (l *Location) SortedKeys() []string {
	if l == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(l.Properties))
}

// Equal reports whether two locations have the same type and properties.
func (l *Location) Equal(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Type == other.Type && maps.Equal(l.Properties, other.Properties)
}

// Clone returns a deep copy of l. A nil location clones to nil.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	return &Location{Type: l.Type, Properties: maps.Clone(l.Properties)}
}
