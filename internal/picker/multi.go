package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MultiModel is the Bubble Tea model for multi-select picking
type MultiModel struct {
	title       string
	items       []Item
	selected    map[string]bool
	cursor      int
	offset      int
	done        bool
	quitting    bool
	searchInput textinput.Model
	searching   bool
}

// NewMulti creates a new multi-select picker model
func NewMulti(title string, items []Item) MultiModel {
	ti := textinput.New()
	ti.Placeholder = "Type to search..."
	ti.CharLimit = 50
	ti.Width = 40

	selected := make(map[string]bool)
	for _, item := range items {
		if item.Selected {
			selected[item.ID] = true
		}
	}

	return MultiModel{
		title:       title,
		items:       items,
		selected:    selected,
		searchInput: ti,
	}
}

// Selected returns the IDs of all selected items in list order
func (m MultiModel) Selected() []string {
	var ids []string
	for _, item := range m.items {
		if m.selected[item.ID] {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// IsQuitting returns true if the user quit without confirming
func (m MultiModel) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m MultiModel) Init() tea.Cmd {
	return nil
}

func (m MultiModel) filteredItems() []Item {
	if m.searchInput.Value() == "" {
		return m.items
	}
	query := strings.ToLower(m.searchInput.Value())
	var filtered []Item
	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.Label), query) ||
			strings.Contains(strings.ToLower(item.ID), query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func (m *MultiModel) adjustScroll() {
	count := len(m.filteredItems())
	if m.cursor >= count {
		m.cursor = count - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisibleItems {
		m.offset = m.cursor - maxVisibleItems + 1
	}
	maxOffset := count - maxVisibleItems
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Update implements tea.Model
func (m MultiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			switch msg.String() {
			case "esc":
				m.searching = false
				m.searchInput.SetValue("")
				m.searchInput.Blur()
				m.cursor = 0
				m.offset = 0
				return m, nil
			case "enter":
				m.searching = false
				m.searchInput.Blur()
				return m, nil
			default:
				m.searchInput, cmd = m.searchInput.Update(msg)
				m.cursor = 0
				m.offset = 0
				return m, cmd
			}
		}

		switch {
		case key.Matches(msg, multiKeys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, multiKeys.Search):
			m.searching = true
			m.searchInput.Focus()
			return m, textinput.Blink

		case key.Matches(msg, multiKeys.Up):
			if m.cursor > 0 {
				m.cursor--
			} else if count := len(m.filteredItems()); count > 0 {
				m.cursor = count - 1
			}
			m.adjustScroll()

		case key.Matches(msg, multiKeys.Down):
			if m.cursor < len(m.filteredItems())-1 {
				m.cursor++
			} else {
				m.cursor = 0
				m.offset = 0
			}
			m.adjustScroll()

		case key.Matches(msg, multiKeys.Toggle):
			items := m.filteredItems()
			if m.cursor < len(items) {
				id := items[m.cursor].ID
				m.selected[id] = !m.selected[id]
			}

		case key.Matches(msg, multiKeys.All):
			allOn := true
			for _, item := range m.filteredItems() {
				if !m.selected[item.ID] {
					allOn = false
					break
				}
			}
			for _, item := range m.filteredItems() {
				m.selected[item.ID] = !allOn
			}

		case key.Matches(msg, multiKeys.Confirm):
			m.done = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model
func (m MultiModel) View() string {
	if m.done || m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	checkedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle := lipgloss.NewStyle().Faint(true)

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if m.searching {
		b.WriteString("\n🔍 ")
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	} else if m.searchInput.Value() != "" {
		b.WriteString("\n")
		b.WriteString(faintStyle.Render("Filter: " + m.searchInput.Value() + " (press / to edit, esc to clear)"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	items := m.filteredItems()
	if len(items) == 0 {
		b.WriteString(faintStyle.Render("  (no items)"))
		b.WriteString("\n")
	} else {
		if m.offset > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  ↑ %d more above", m.offset)))
			b.WriteString("\n")
		}

		end := m.offset + maxVisibleItems
		if end > len(items) {
			end = len(items)
		}

		for i := m.offset; i < end; i++ {
			item := items[i]
			mark := "[ ]"
			if m.selected[item.ID] {
				mark = checkedStyle.Render("[x]")
			}
			if i == m.cursor {
				b.WriteString(cursorStyle.Render("> "))
			} else {
				b.WriteString("  ")
			}
			b.WriteString(mark + " " + item.Label)
			b.WriteString("\n")
		}

		if remaining := len(items) - end; remaining > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf("  ↓ %d more below", remaining)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("↑/↓: navigate • space: toggle • a: all • /: search • enter: confirm • q: quit"))

	return b.String()
}

type multiKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Search  key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

var multiKeys = multiKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Toggle:  key.NewBinding(key.WithKeys(" ")),
	All:     key.NewBinding(key.WithKeys("a")),
	Search:  key.NewBinding(key.WithKeys("/")),
	Confirm: key.NewBinding(key.WithKeys("enter")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// RunMulti runs the multi-select picker and returns the selected IDs.
// A nil slice with nil error means the user quit without confirming.
func RunMulti(title string, items []Item) ([]string, error) {
	m := NewMulti(title, items)
	p := tea.NewProgram(m)

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	fm := finalModel.(MultiModel)
	if fm.IsQuitting() {
		return nil, nil
	}
	return fm.Selected(), nil
}
