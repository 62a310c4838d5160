package components

import (
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
)

// Tooltips maps clickable zones to hover help
type Tooltips struct {
	enabled  bool
	triggers map[string]string
	current  string
}

// NewTooltips creates a tooltip registry
func NewTooltips(enabled bool) *Tooltips {
	return &Tooltips{
		enabled:  enabled,
		triggers: make(map[string]string),
	}
}

// InitTrigger registers text for a zone. Registering again replaces the text.
func (t *Tooltips) InitTrigger(zoneID, text string) {
	if t == nil {
		return
	}
	t.triggers[zoneID] = text
}

// Forget drops a trigger
func (t *Tooltips) Forget(zoneID string) {
	if t == nil {
		return
	}
	delete(t.triggers, zoneID)
	if t.current == zoneID {
		t.current = ""
	}
}

// Update tracks which trigger the pointer is over
func (t *Tooltips) Update(msg tea.MouseMsg) {
	if t == nil || !t.enabled {
		return
	}
	for id := range t.triggers {
		if zone.Get(id).InBounds(msg) {
			t.current = id
			return
		}
	}
	t.current = ""
}

// Text returns the help of the hovered trigger, if any
func (t *Tooltips) Text() string {
	if t == nil || t.current == "" {
		return ""
	}
	return t.triggers[t.current]
}

// Len returns the number of registered triggers
func (t *Tooltips) Len() int {
	if t == nil {
		return 0
	}
	return len(t.triggers)
}
