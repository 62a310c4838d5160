package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

// ConfirmResultMsg is sent when the user answers a confirmation
type ConfirmResultMsg struct {
	// Subject is whatever the caller passed to Activate
	Subject   string
	Confirmed bool
}

// ConfirmDialog is a simple yes/no prompt
type ConfirmDialog struct {
	active  bool
	subject string
	message string
	Theme   theme.Theme
	Width   int
}

// NewConfirmDialog creates an inactive dialog
func NewConfirmDialog(th theme.Theme) *ConfirmDialog {
	return &ConfirmDialog{Theme: th, Width: 40}
}

// Activate shows the dialog for subject
func (c *ConfirmDialog) Activate(subject, message string) {
	c.active = true
	c.subject = subject
	c.message = message
}

// Deactivate hides the dialog without answering
func (c *ConfirmDialog) Deactivate() {
	c.active = false
	c.subject = ""
}

// IsActive returns whether the dialog is showing
func (c *ConfirmDialog) IsActive() bool {
	return c.active
}

// Update answers on y/n/esc and swallows every other key
func (c *ConfirmDialog) Update(msg tea.Msg) tea.Cmd {
	if !c.active {
		return nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch key.String() {
	case "y", "Y":
		return c.answer(true)
	case "n", "N", "esc":
		return c.answer(false)
	}
	return nil
}

func (c *ConfirmDialog) answer(confirmed bool) tea.Cmd {
	subject := c.subject
	c.Deactivate()
	return func() tea.Msg {
		return ConfirmResultMsg{Subject: subject, Confirmed: confirmed}
	}
}

// View renders the prompt
func (c *ConfirmDialog) View() string {
	if !c.active {
		return ""
	}

	var b strings.Builder

	warningStyle := lipgloss.NewStyle().
		Foreground(c.Theme.Warning).
		Bold(true)
	b.WriteString(warningStyle.Render("⚠ " + c.message))
	b.WriteString("\n")

	promptStyle := lipgloss.NewStyle().Foreground(c.Theme.Muted)
	b.WriteString(promptStyle.Render("y: Yes | n/Esc: No"))

	return lipgloss.NewStyle().
		Width(c.Width).
		Padding(0, 1).
		Render(b.String())
}
