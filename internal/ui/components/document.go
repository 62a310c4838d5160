package components

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// LayerID identifies a mounted overlay
type LayerID int

// ListenerID identifies a document-level mouse listener
type ListenerID int

// MouseListener receives every mouse event dispatched to the document
type MouseListener func(msg tea.MouseMsg) tea.Cmd

// Layer is an overlay drawn over the base view at a fixed cell
type Layer struct {
	ID      LayerID
	Role    string
	Top     int
	Left    int
	Content string
}

// Bounds is the area the layer covered when its content was last set
func (l *Layer) Bounds() Rect {
	if l.Content == "" {
		return Rect{X: l.Left, Y: l.Top}
	}
	return Rect{
		X:      l.Left,
		Y:      l.Top,
		Width:  lipgloss.Width(l.Content),
		Height: lipgloss.Height(l.Content),
	}
}

type listenerEntry struct {
	id ListenerID
	fn MouseListener
}

// Document owns the overlays and mouse listeners of the screen. Layers are
// drawn in mount order; listeners are called in attach order.
type Document struct {
	layers    []*Layer
	listeners []listenerEntry
	nextLayer LayerID
	nextID    ListenerID
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{}
}

// Mount adds a layer and returns its handle
func (d *Document) Mount(role string, top, left int) LayerID {
	d.nextLayer++
	d.layers = append(d.layers, &Layer{ID: d.nextLayer, Role: role, Top: top, Left: left})
	return d.nextLayer
}

// Unmount removes a layer. It reports whether the layer was mounted.
func (d *Document) Unmount(id LayerID) bool {
	for i, l := range d.layers {
		if l.ID == id {
			d.layers = append(d.layers[:i], d.layers[i+1:]...)
			return true
		}
	}
	return false
}

// Layer returns a mounted layer
func (d *Document) Layer(id LayerID) (*Layer, bool) {
	for _, l := range d.layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// SetContent replaces what a layer draws
func (d *Document) SetContent(id LayerID, content string) {
	if l, ok := d.Layer(id); ok {
		l.Content = content
	}
}

// CountRole returns how many mounted layers carry role
func (d *Document) CountRole(role string) int {
	n := 0
	for _, l := range d.layers {
		if l.Role == role {
			n++
		}
	}
	return n
}

// AddListener attaches fn and returns the handle needed to detach it
func (d *Document) AddListener(fn MouseListener) ListenerID {
	d.nextID++
	d.listeners = append(d.listeners, listenerEntry{id: d.nextID, fn: fn})
	return d.nextID
}

// RemoveListener detaches a listener. It reports whether it was attached.
func (d *Document) RemoveListener(id ListenerID) bool {
	for i, l := range d.listeners {
		if l.id == id {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount returns the number of attached listeners
func (d *Document) ListenerCount() int {
	return len(d.listeners)
}

// Dispatch calls every listener attached when the event arrived. Listeners
// may detach themselves or others while being called.
func (d *Document) Dispatch(msg tea.MouseMsg) tea.Cmd {
	snapshot := make([]listenerEntry, len(d.listeners))
	copy(snapshot, d.listeners)

	var cmds []tea.Cmd
	for _, l := range snapshot {
		if cmd := l.fn(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Render draws the layers over base. Rows below height are dropped when
// height is positive.
func (d *Document) Render(base string, height int) string {
	if len(d.layers) == 0 {
		return base
	}

	lines := strings.Split(base, "\n")
	for _, l := range d.layers {
		if l.Content == "" {
			continue
		}
		lines = overlay(lines, l, height)
	}
	return strings.Join(lines, "\n")
}

func overlay(lines []string, l *Layer, height int) []string {
	left := l.Left
	if left < 0 {
		left = 0
	}

	rows := strings.Split(l.Content, "\n")
	width := 0
	for _, row := range rows {
		if n := ansi.StringWidth(row); n > width {
			width = n
		}
	}

	for i, row := range rows {
		y := l.Top + i
		if y < 0 {
			continue
		}
		if height > 0 && y >= height {
			break
		}
		for len(lines) <= y {
			lines = append(lines, "")
		}

		base := lines[y]
		prefix := ansi.Cut(base, 0, left)
		if n := ansi.StringWidth(prefix); n < left {
			prefix += strings.Repeat(" ", left-n)
		}
		if n := ansi.StringWidth(row); n < width {
			row += strings.Repeat(" ", width-n)
		}
		suffix := ansi.Cut(base, left+width, ansi.StringWidth(base))

		lines[y] = prefix + row + suffix
	}
	return lines
}
