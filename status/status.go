// Package status maps device status tokens to a description and a display
// color using the operator-maintained vocabulary.
package status

import (
	"strings"

	"github.com/nanoncore/nano-onulocator/types"
)

// Table is an immutable status vocabulary
type Table struct {
	entries map[string]types.StatusEntry
}

// NewTable builds a table; later entries win over earlier duplicates
func NewTable(entries []types.StatusEntry) *Table {
	t := &Table{entries: make(map[string]types.StatusEntry, len(entries))}
	for _, e := range entries {
		if e.Color == "" {
			e.Color = types.DefaultColor
		}
		t.entries[e.Code] = e
	}
	return t
}

// Classify returns the description and color of token. The token is looked
// up as is, then lower-cased; codes in the table are not folded. Unknown
// tokens describe themselves in the default color.
func (t *Table) Classify(token string) (description, color string) {
	if t != nil {
		if e, ok := t.entries[token]; ok {
			return e.Description, e.Color
		}
		if e, ok := t.entries[strings.ToLower(token)]; ok {
			return e.Description, e.Color
		}
	}
	return token, types.DefaultColor
}

// Apply fills the description and color of d from its status
func (t *Table) Apply(d *types.Diagnostics) {
	d.Description, d.Color = t.Classify(d.Status)
}
