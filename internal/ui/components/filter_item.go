package components

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	zone "github.com/lrstanley/bubblezone"
	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/filter"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/templates"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

// EditState tracks whether an item has unsubmitted edits
type EditState int

const (
	// Clean has nothing to submit
	Clean EditState = iota
	// Dirty has edits and can be submitted
	Dirty
	// Submitting waits for the backend
	Submitting
)

func (s EditState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("EditState(%d)", int(s))
}

type itemField int

const (
	fieldMethod itemField = iota
	fieldInput
	fieldToggle
	fieldSubmit
	fieldDelete
	fieldCount
)

// ItemDeps are the collaborators every item of a list shares
type ItemDeps struct {
	Store     api.FilterStore
	Templates api.TemplateSource
	Opener    SheetOpener
	Tooltips  *Tooltips
	Theme     theme.Theme
}

// FilterItem is the editor of one rule inside the popup
type FilterItem struct {
	Key   string
	Width int

	state models.RuleState
	scope models.Scope

	edit  EditState
	armed bool
	// edits that arrived while a submit was in flight
	editedWhileSubmitting bool

	method  models.Method
	input   textinput.Model
	enabled bool

	field   itemField
	focused bool
	lastErr error

	tmpl *template.Template
	deps ItemDeps
}

// NewFilterItem creates a clean item showing state
func NewFilterItem(state models.RuleState, deps ItemDeps) *FilterItem {
	rule := state.Rule()

	ti := textinput.New()
	ti.Placeholder = "pattern"
	ti.CharLimit = 256
	ti.Prompt = ""
	ti.Cursor.SetMode(cursor.CursorStatic)
	ti.SetValue(rule.Input)

	method := rule.Method
	if method == "" {
		method = filter.Methods()[0]
	}

	return &FilterItem{
		Key:     uuid.NewString(),
		Width:   36,
		state:   state,
		scope:   rule.Scope,
		edit:    Clean,
		armed:   true,
		method:  method,
		input:   ti,
		enabled: rule.Enabled,
		field:   fieldInput,
		deps:    deps,
	}
}

// State returns whether the rule is persisted, and its last known values
func (fi *FilterItem) State() models.RuleState { return fi.state }

// EditState returns the dirty-tracking state
func (fi *FilterItem) EditState() EditState { return fi.edit }

// Err returns the error of the last failed submit
func (fi *FilterItem) Err() error { return fi.lastErr }

// Enabled returns the local visibility flag
func (fi *FilterItem) Enabled() bool { return fi.enabled }

// Method returns the selected method
func (fi *FilterItem) Method() models.Method { return fi.method }

// Input returns the pattern being edited
func (fi *FilterItem) Input() string { return fi.input.Value() }

// Rule returns the rule as currently edited
func (fi *FilterItem) Rule() models.FilterRule {
	return models.FilterRule{
		Scope:   fi.scope,
		Method:  fi.method,
		Input:   fi.input.Value(),
		Enabled: fi.enabled,
	}
}

// CanSubmit reports whether submit is enabled
func (fi *FilterItem) CanSubmit() bool { return fi.edit == Dirty }

// markEdited flips Clean to Dirty on the first edit after a submit
func (fi *FilterItem) markEdited() {
	switch fi.edit {
	case Submitting:
		fi.editedWhileSubmitting = true
	case Clean:
		if fi.armed {
			fi.edit = Dirty
			fi.armed = false
		}
	}
}

func (fi *FilterItem) rearm() {
	if fi.editedWhileSubmitting {
		fi.edit = Dirty
		fi.armed = false
	} else {
		fi.edit = Clean
		fi.armed = true
	}
	fi.editedWhileSubmitting = false
}

// SetInput replaces the pattern as if typed
func (fi *FilterItem) SetInput(s string) {
	if s == fi.input.Value() {
		return
	}
	fi.input.SetValue(s)
	fi.markEdited()
}

// SetMethod selects a method
func (fi *FilterItem) SetMethod(m models.Method) {
	if m == fi.method {
		return
	}
	fi.method = m
	fi.markEdited()
}

// CycleMethod moves the selector by delta, wrapping around
func (fi *FilterItem) CycleMethod(delta int) {
	methods := filter.Methods()
	idx := -1
	for i, m := range methods {
		if m == fi.method {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
	} else {
		idx = ((idx+delta)%len(methods) + len(methods)) % len(methods)
	}
	fi.SetMethod(methods[idx])
}

// Toggle flips visibility locally. The backend only learns about it on the
// next submit.
func (fi *FilterItem) Toggle() {
	fi.enabled = !fi.enabled
	fi.markEdited()
}

// ToggleAlt is the text alternative of the visibility icon
func (fi *FilterItem) ToggleAlt() string {
	if fi.enabled {
		return "Rule is applied, click to hide"
	}
	return "Rule is hidden, click to apply"
}

// Submit sends the rule: an add while unpersisted, an update once persisted.
// It does nothing unless the item is dirty.
func (fi *FilterItem) Submit() tea.Cmd {
	if fi.edit != Dirty || fi.deps.Store == nil {
		return nil
	}

	fi.edit = Submitting
	fi.editedWhileSubmitting = false
	fi.lastErr = nil

	rule := fi.Rule()
	key := fi.Key
	store := fi.deps.Store

	switch st := fi.state.(type) {
	case models.Unpersisted:
		return func() tea.Msg {
			id, err := store.Add(context.Background(), rule)
			return FilterSubmittedMsg{ItemKey: key, Sheet: rule.Scope.Sheet, Added: true, ID: id, Rule: rule, Err: err}
		}
	case models.Persisted:
		id := st.ID
		return func() tea.Msg {
			err := store.Update(context.Background(), id, rule)
			return FilterSubmittedMsg{ItemKey: key, Sheet: rule.Scope.Sheet, ID: id, Rule: rule, Err: err}
		}
	}
	return nil
}

// HandleSubmitted applies the result of Submit. Success refreshes the sheet.
func (fi *FilterItem) HandleSubmitted(msg FilterSubmittedMsg) tea.Cmd {
	if msg.Err != nil {
		logger.Error("filter submit failed", "item", fi.Key, "added", msg.Added, "error", msg.Err)
		fi.lastErr = msg.Err
		fi.edit = Dirty
		fi.editedWhileSubmitting = false
		return nil
	}

	fi.state = models.Persisted{ID: msg.ID, Current: msg.Rule}
	fi.lastErr = nil
	fi.rearm()

	logger.Info("filter saved", "filter_id", msg.ID, "added", msg.Added)
	if fi.deps.Opener == nil {
		return nil
	}
	return fi.deps.Opener.OpenSheet(fi.deps.Opener.SheetIndex())
}

// DeleteCmd deletes a persisted rule without waiting on the result. It is
// nil for a rule the backend never saw.
func (fi *FilterItem) DeleteCmd() tea.Cmd {
	id, ok := models.PersistedID(fi.state)
	if !ok || fi.deps.Store == nil {
		return nil
	}
	store := fi.deps.Store
	return func() tea.Msg {
		err := store.Delete(context.Background(), id)
		return FilterDeletedMsg{ID: id, Err: err}
	}
}

func (fi *FilterItem) requestDelete() tea.Cmd {
	key := fi.Key
	return func() tea.Msg {
		return DeleteRequestedMsg{ItemKey: key}
	}
}

// FetchTemplate asks for this item's layout
func (fi *FilterItem) FetchTemplate() tea.Cmd {
	return fetchTemplate(fi.deps.Templates, fi.Key, templates.FilterItem)
}

// HandleTemplate installs a fetched layout; failures keep the built-in one
func (fi *FilterItem) HandleTemplate(msg TemplateLoadedMsg) {
	if msg.Err != nil {
		logger.Warn("filter item template unavailable", "error", msg.Err)
		return
	}
	t, err := templates.Parse(msg.Path, msg.Text)
	if err != nil {
		logger.Warn("filter item template invalid", "error", err)
		return
	}
	fi.tmpl = t
}

// Focus marks the item as the list's current entry
func (fi *FilterItem) Focus() {
	fi.focused = true
	fi.focusField(fi.field)
}

// Blur releases keyboard focus
func (fi *FilterItem) Blur() {
	fi.focused = false
	fi.input.Blur()
}

// Focused reports whether the item has keyboard focus
func (fi *FilterItem) Focused() bool { return fi.focused }

func (fi *FilterItem) focusField(f itemField) {
	fi.field = (f + fieldCount) % fieldCount
	if fi.focused && fi.field == fieldInput {
		fi.input.Focus()
	} else {
		fi.input.Blur()
	}
}

// Update handles keys while the item is focused
func (fi *FilterItem) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		fi.focusField(fi.field + 1)
		return nil
	case "shift+tab":
		fi.focusField(fi.field - 1)
		return nil
	case "ctrl+s":
		return fi.Submit()
	case "ctrl+d":
		return fi.requestDelete()
	case "enter":
		switch fi.field {
		case fieldMethod:
			fi.CycleMethod(1)
			return nil
		case fieldToggle:
			fi.Toggle()
			return nil
		case fieldDelete:
			return fi.requestDelete()
		}
		return fi.Submit()
	}

	switch fi.field {
	case fieldMethod:
		switch msg.String() {
		case "left", "h":
			fi.CycleMethod(-1)
		case "right", "l", " ":
			fi.CycleMethod(1)
		}
		return nil
	case fieldToggle:
		if msg.String() == " " {
			fi.Toggle()
		}
		return nil
	case fieldInput:
		before := fi.input.Value()
		var cmd tea.Cmd
		fi.input, cmd = fi.input.Update(msg)
		if fi.input.Value() != before {
			fi.markEdited()
		}
		return cmd
	}
	return nil
}

func (fi *FilterItem) zoneID(part string) string {
	return "filter-item-" + fi.Key + "-" + part
}

// HandleClick reacts to a left click on one of the item's controls
func (fi *FilterItem) HandleClick(msg tea.MouseMsg) (bool, tea.Cmd) {
	switch {
	case zone.Get(fi.zoneID("toggle")).InBounds(msg):
		fi.focusField(fieldToggle)
		fi.Toggle()
		return true, nil
	case zone.Get(fi.zoneID("method")).InBounds(msg):
		fi.focusField(fieldMethod)
		fi.CycleMethod(1)
		return true, nil
	case zone.Get(fi.zoneID("submit")).InBounds(msg):
		fi.focusField(fieldSubmit)
		return true, fi.Submit()
	case zone.Get(fi.zoneID("delete")).InBounds(msg):
		fi.focusField(fieldDelete)
		return true, fi.requestDelete()
	case zone.Get(fi.zoneID("input")).InBounds(msg):
		fi.focusField(fieldInput)
		return true, nil
	}
	return false, nil
}

// Forget drops the item's tooltips
func (fi *FilterItem) Forget() {
	for _, part := range []string{"toggle", "method", "submit", "delete"} {
		fi.deps.Tooltips.Forget(fi.zoneID(part))
	}
}

type itemView struct {
	Toggle string
	Method string
	Delete string
	Input  string
	Submit string
	Status string
}

// View renders the item with its layout
func (fi *FilterItem) View() string {
	th := fi.deps.Theme
	highlight := func(f itemField, s lipgloss.Style) lipgloss.Style {
		if fi.focused && fi.field == f {
			return s.Background(th.Selection).Bold(true)
		}
		return s
	}

	icon, iconColor := "●", th.FilterEnabled
	if !fi.enabled {
		icon, iconColor = "○", th.FilterDisabled
	}
	toggle := highlight(fieldToggle, lipgloss.NewStyle().Foreground(iconColor)).Render(icon)

	method := highlight(fieldMethod, lipgloss.NewStyle().Foreground(th.Info)).
		Render("‹ " + filter.MethodLabel(fi.method) + " ›")

	del := highlight(fieldDelete, lipgloss.NewStyle().Foreground(th.Error)).Render("✕")

	fi.input.Width = fi.Width - 2
	if fi.input.Width < 4 {
		fi.input.Width = 4
	}
	inputStyle := lipgloss.NewStyle().Foreground(th.Foreground)
	if fi.focused && fi.field == fieldInput {
		inputStyle = inputStyle.Underline(true)
	}
	input := inputStyle.Render(fi.input.View())

	var submit string
	switch fi.edit {
	case Dirty:
		submit = highlight(fieldSubmit, lipgloss.NewStyle().Foreground(th.Success).Bold(true)).Render("[ save ]")
	case Submitting:
		submit = lipgloss.NewStyle().Foreground(th.Muted).Italic(true).Render("[ saving… ]")
	default:
		submit = highlight(fieldSubmit, lipgloss.NewStyle().Foreground(th.Muted)).Render("[ save ]")
	}

	status := ""
	if fi.lastErr != nil {
		status = lipgloss.NewStyle().Foreground(th.Error).Render("save failed")
	} else if id, ok := models.PersistedID(fi.state); ok {
		status = lipgloss.NewStyle().Foreground(th.Muted).Render(fmt.Sprintf("#%d", id))
	} else {
		status = lipgloss.NewStyle().Foreground(th.Warning).Render("new")
	}

	fi.deps.Tooltips.InitTrigger(fi.zoneID("toggle"), fi.ToggleAlt())
	fi.deps.Tooltips.InitTrigger(fi.zoneID("method"), "Matching method, click to change")
	fi.deps.Tooltips.InitTrigger(fi.zoneID("delete"), "Delete rule")
	fi.deps.Tooltips.InitTrigger(fi.zoneID("submit"), "Save rule")

	data := itemView{
		Toggle: zone.Mark(fi.zoneID("toggle"), toggle),
		Method: zone.Mark(fi.zoneID("method"), method),
		Delete: zone.Mark(fi.zoneID("delete"), del),
		Input:  zone.Mark(fi.zoneID("input"), input),
		Submit: zone.Mark(fi.zoneID("submit"), submit),
		Status: status,
	}

	out, err := fi.render(data)
	if err != nil {
		logger.Warn("filter item template failed, using built-in", "error", err)
		out, _ = templates.Render(templates.Builtin(templates.FilterItem), data)
	}

	if fi.lastErr != nil {
		msg := strings.TrimSpace(fi.lastErr.Error())
		out += "\n" + lipgloss.NewStyle().Foreground(th.Error).Width(fi.Width).Render(msg)
	}

	bar := " "
	if fi.focused {
		bar = lipgloss.NewStyle().Foreground(th.BorderFocused).Render("▌")
	}
	lines := strings.Split(out, "\n")
	for i := range lines {
		lines[i] = bar + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (fi *FilterItem) render(data itemView) (string, error) {
	t := fi.tmpl
	if t == nil {
		t = templates.Builtin(templates.FilterItem)
	}
	return templates.Render(t, data)
}
