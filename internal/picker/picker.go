// Package picker provides the interactive terminal selection used by
// `apm install --interactive`.
package picker

// Item is one selectable entry
type Item struct {
	ID       string
	Label    string
	Selected bool
}

// maxVisibleItems caps the viewport height of the list
const maxVisibleItems = 15
