package help

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         string
	Description string
}

// Section is a titled group of key bindings
type Section struct {
	Title string
	Keys  []KeyBinding
}

// GetGlobalKeys returns global key bindings
func GetGlobalKeys() []KeyBinding {
	return []KeyBinding{
		{"?", "Toggle help"},
		{"q, Ctrl+C", "Quit application"},
		{"Esc/Enter", "Dismiss error"},
		{"r, F5", "Reload file"},
	}
}

// GetSheetKeys returns sheet view key bindings
func GetSheetKeys() []KeyBinding {
	return []KeyBinding{
		{"↑/k ↓/j", "Move between rows"},
		{"←/h →/l", "Move between columns"},
		{"Ctrl+U/Ctrl+D", "Page up/down"},
		{"g/G", "First/last row"},
		{"[ ]", "Previous/next sheet"},
		{"y", "Copy cell"},
		{"f, Enter", "Filters of the selected column"},
		{"Click ▽", "Filters of that column"},
	}
}

// GetFilterKeys returns filter popup key bindings
func GetFilterKeys() []KeyBinding {
	return []KeyBinding{
		{"↑/↓", "Move between filters"},
		{"Ctrl+N", "Add filter"},
		{"Tab/Shift+Tab", "Move between controls"},
		{"←/→", "Change method"},
		{"Space", "Toggle visibility"},
		{"Ctrl+S", "Save filter"},
		{"Ctrl+D", "Delete filter"},
		{"Esc", "Close (unsaved changes are lost)"},
	}
}

// Sections returns every help section in display order
func Sections() []Section {
	return []Section{
		{"Global", GetGlobalKeys()},
		{"Sheet", GetSheetKeys()},
		{"Filters", GetFilterKeys()},
	}
}

// Render creates the help view
func Render(width, height int, th theme.Theme) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(th.BorderFocused).
		Padding(1, 0)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(th.Info).
		Padding(0, 0, 0, 2)

	keyStyle := lipgloss.NewStyle().
		Foreground(th.Warning).
		Width(20)

	descStyle := lipgloss.NewStyle().
		Foreground(th.Foreground)

	var b strings.Builder

	b.WriteString(titleStyle.Render("lazysheet - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, s := range Sections() {
		b.WriteString(sectionStyle.Render(s.Title))
		b.WriteString("\n")
		for _, kb := range s.Keys {
			b.WriteString("  ")
			b.WriteString(keyStyle.Render(kb.Key))
			b.WriteString(descStyle.Render(kb.Description))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press '?' or Esc to close help"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.BorderFocused).
		Padding(1, 2).
		Width(max(width-4, 20)).
		Height(max(height-4, 5))

	return boxStyle.Render(b.String())
}
