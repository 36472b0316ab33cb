package servicelayer

import (
	"fmt"
	"strings"
)

// SearchField is one of the closed set of item fields a search may
// filter on.
type SearchField string

const (
	SearchByItemCode SearchField = "ItemCode"
	SearchByItemName SearchField = "ItemName"
)

// Valid reports whether the field is searchable.
func (f SearchField) Valid() bool {
	return f == SearchByItemCode || f == SearchByItemName
}

// ParseSearchField maps user input onto a searchable field, defaulting to
// ItemCode for anything unknown.
func ParseSearchField(s string) SearchField {
	if f := SearchField(s); f.Valid() {
		return f
	}
	return SearchByItemCode
}

// ContainsFilter renders an OData substring filter for the given field.
// Single quotes in the text are doubled per OData literal escaping.
func ContainsFilter(field SearchField, text string) string {
	escaped := strings.ReplaceAll(text, "'", "''")
	return fmt.Sprintf("contains(%s,'%s')", field, escaped)
}

// DocEntryFilter renders a filter matching any of the given DocEntry ids.
func DocEntryFilter(entries []int) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("DocEntry eq %d", e)
	}
	return strings.Join(parts, " or ")
}
