package components

import (
	"context"
	"strings"
	"text/template"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	zone "github.com/lrstanley/bubblezone"
	"github.com/rebeliceyang/lazysheet/internal/filter"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/templates"
)

const addZoneID = "filter-list-add"

// EntryKind tells items and separators apart
type EntryKind int

const (
	// EntryItem is a filter row
	EntryItem EntryKind = iota
	// EntrySeparator is the rule drawn between two filter rows
	EntrySeparator
)

// Entry is one row of the rendered list
type Entry struct {
	Kind EntryKind
	Item *FilterItem
}

// FilterList holds the items of one column. Persisted rules keep the order
// the backend returned them in; new rules go on top.
type FilterList struct {
	Title string
	Width int

	scope   models.Scope
	token   string
	loading bool
	loadErr error

	items []*FilterItem
	// 0 is the add affordance, i is items[i-1]
	cursor int

	tmpl *template.Template
	deps ItemDeps
}

// NewFilterList creates an empty list
func NewFilterList(deps ItemDeps) *FilterList {
	return &FilterList{Width: 40, deps: deps}
}

// Build resets the list for a column and starts fetching its rules
func (fl *FilterList) Build(fileID models.FileID, sheet, column int) tea.Cmd {
	fl.Reset()
	fl.scope = models.Scope{FileID: fileID, Sheet: sheet, Column: column}
	fl.token = uuid.NewString()
	fl.loading = true

	store := fl.deps.Store
	if store == nil {
		fl.loading = false
		return nil
	}

	token, scope := fl.token, fl.scope
	return func() tea.Msg {
		rules, err := store.GetAt(context.Background(), scope)
		return RulesLoadedMsg{Token: token, Scope: scope, Rules: rules, Err: err}
	}
}

// Token identifies the current build
func (fl *FilterList) Token() string { return fl.token }

// Scope returns the column the list was built for
func (fl *FilterList) Scope() models.Scope { return fl.scope }

// Loading reports whether the rule fetch is pending
func (fl *FilterList) Loading() bool { return fl.loading }

// LoadErr returns the error of the rule fetch
func (fl *FilterList) LoadErr() error { return fl.loadErr }

// HandleRulesLoaded fills the list. Results of an older build are dropped.
func (fl *FilterList) HandleRulesLoaded(msg RulesLoadedMsg) tea.Cmd {
	if msg.Token != fl.token {
		return nil
	}
	fl.loading = false

	if msg.Err != nil {
		logger.Error("failed to fetch filters", "file_id", msg.Scope.FileID,
			"sheet", msg.Scope.Sheet, "column", msg.Scope.Column, "error", msg.Err)
		fl.loadErr = msg.Err
		return nil
	}

	var cmds []tea.Cmd
	for _, r := range msg.Rules {
		rule := r.FilterRule
		rule.Scope = fl.scope
		item := fl.newItem(models.Persisted{ID: r.ID, Current: rule})
		fl.items = append(fl.items, item)
		cmds = append(cmds, item.FetchTemplate())
	}
	return tea.Batch(cmds...)
}

func (fl *FilterList) newItem(state models.RuleState) *FilterItem {
	item := NewFilterItem(state, fl.deps)
	item.Width = fl.Width - 2
	return item
}

// AddNew puts an unpersisted rule at the top of the list and focuses it
func (fl *FilterList) AddNew() tea.Cmd {
	rule := models.FilterRule{
		Scope:   fl.scope,
		Method:  filter.Methods()[0],
		Enabled: true,
	}
	item := fl.newItem(models.Unpersisted{Pending: rule})
	fl.items = append([]*FilterItem{item}, fl.items...)
	fl.setCursor(1)
	return item.FetchTemplate()
}

// Items returns the items in display order
func (fl *FilterList) Items() []*FilterItem { return fl.items }

// Len returns the number of items
func (fl *FilterList) Len() int { return len(fl.items) }

// Item finds an item by key
func (fl *FilterList) Item(key string) (*FilterItem, bool) {
	for _, it := range fl.items {
		if it.Key == key {
			return it, true
		}
	}
	return nil, false
}

// Remove drops an item from the view
func (fl *FilterList) Remove(key string) bool {
	for i, it := range fl.items {
		if it.Key != key {
			continue
		}
		it.Forget()
		fl.items = append(fl.items[:i], fl.items[i+1:]...)
		if fl.cursor > len(fl.items) {
			fl.cursor = len(fl.items)
		}
		fl.setCursor(fl.cursor)
		return true
	}
	return false
}

// Reset empties the list. Unsaved rules are discarded.
func (fl *FilterList) Reset() {
	for _, it := range fl.items {
		it.Forget()
	}
	fl.items = nil
	fl.cursor = 0
	fl.loading = false
	fl.loadErr = nil
	fl.token = ""
	fl.tmpl = nil
}

// Entries interleaves the items with separators
func (fl *FilterList) Entries() []Entry {
	entries := make([]Entry, 0, 2*len(fl.items))
	for i, it := range fl.items {
		if i > 0 {
			entries = append(entries, Entry{Kind: EntrySeparator})
		}
		entries = append(entries, Entry{Kind: EntryItem, Item: it})
	}
	return entries
}

// SeparatorCount returns the number of separators between items
func (fl *FilterList) SeparatorCount() int {
	n := 0
	for _, e := range fl.Entries() {
		if e.Kind == EntrySeparator {
			n++
		}
	}
	return n
}

// Cursor returns the focused entry: 0 for the add affordance
func (fl *FilterList) Cursor() int { return fl.cursor }

// Focused returns the item under the cursor
func (fl *FilterList) Focused() (*FilterItem, bool) {
	if fl.cursor < 1 || fl.cursor > len(fl.items) {
		return nil, false
	}
	return fl.items[fl.cursor-1], true
}

func (fl *FilterList) setCursor(c int) {
	if c < 0 {
		c = 0
	}
	if c > len(fl.items) {
		c = len(fl.items)
	}
	fl.cursor = c
	for i, it := range fl.items {
		if i == c-1 {
			it.Focus()
		} else {
			it.Blur()
		}
	}
}

// Update handles keys
func (fl *FilterList) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up":
		fl.setCursor(fl.cursor - 1)
		return nil
	case "down":
		fl.setCursor(fl.cursor + 1)
		return nil
	case "ctrl+n":
		return fl.AddNew()
	}

	if fl.cursor == 0 {
		switch msg.String() {
		case "enter", "a", " ":
			return fl.AddNew()
		case "j":
			fl.setCursor(1)
		}
		return nil
	}

	if item, ok := fl.Focused(); ok {
		return item.Update(msg)
	}
	return nil
}

// HandleClick routes a left click to the add affordance or an item
func (fl *FilterList) HandleClick(msg tea.MouseMsg) (bool, tea.Cmd) {
	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionPress {
		return false, nil
	}

	if zone.Get(addZoneID).InBounds(msg) {
		return true, fl.AddNew()
	}
	for i, it := range fl.items {
		if handled, cmd := it.HandleClick(msg); handled {
			fl.setCursor(i + 1)
			return true, cmd
		}
	}
	return false, nil
}

// FetchTemplate asks for the list layout
func (fl *FilterList) FetchTemplate() tea.Cmd {
	return fetchTemplate(fl.deps.Templates, fl.token, templates.FilterList)
}

// HandleTemplate installs a fetched list layout or forwards an item's
func (fl *FilterList) HandleTemplate(msg TemplateLoadedMsg) {
	if msg.Owner == fl.token && msg.Path == templates.FilterList {
		if msg.Err != nil {
			logger.Warn("filter list template unavailable", "error", msg.Err)
			return
		}
		t, err := templates.Parse(msg.Path, msg.Text)
		if err != nil {
			logger.Warn("filter list template invalid", "error", err)
			return
		}
		fl.tmpl = t
		return
	}
	if item, ok := fl.Item(msg.Owner); ok {
		item.HandleTemplate(msg)
	}
}

type listView struct {
	Title string
	Add   string
	Note  string
	Body  string
}

// View renders the list with its layout
func (fl *FilterList) View() string {
	th := fl.deps.Theme

	titleStyle := lipgloss.NewStyle().Foreground(th.Foreground).Bold(true)
	addStyle := lipgloss.NewStyle().Foreground(th.Success)
	if fl.cursor == 0 {
		addStyle = addStyle.Background(th.Selection).Bold(true)
	}
	fl.deps.Tooltips.InitTrigger(addZoneID, "Add a filter to this column")

	note := ""
	switch {
	case fl.loading:
		note = lipgloss.NewStyle().Foreground(th.Muted).Italic(true).Render("Loading filters…")
	case fl.loadErr != nil:
		note = lipgloss.NewStyle().Foreground(th.Error).Render("Could not load filters")
	case len(fl.items) == 0:
		note = lipgloss.NewStyle().Foreground(th.Muted).Render("No filters")
	}

	sep := lipgloss.NewStyle().Foreground(th.Separator).Render(strings.Repeat("─", max(fl.Width-2, 1)))
	var body []string
	for _, e := range fl.Entries() {
		if e.Kind == EntrySeparator {
			body = append(body, sep)
			continue
		}
		body = append(body, e.Item.View())
	}

	data := listView{
		Title: titleStyle.Render(fl.Title),
		Add:   zone.Mark(addZoneID, addStyle.Render("+ Add filter")),
		Note:  note,
		Body:  strings.Join(body, "\n"),
	}

	t := fl.tmpl
	if t == nil {
		t = templates.Builtin(templates.FilterList)
	}
	out, err := templates.Render(t, data)
	if err != nil {
		logger.Warn("filter list template failed, using built-in", "error", err)
		out, _ = templates.Render(templates.Builtin(templates.FilterList), data)
	}
	return out
}
