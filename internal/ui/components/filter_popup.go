package components

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

// RoleFiltersList marks the layer of the filter popup
const RoleFiltersList = "filters-list"

// PopupConfig sizes the popup
type PopupConfig struct {
	Width         int
	MinRight      int
	ConfirmDelete bool
}

// FilterPopup owns the one filter popup of the screen and the outside-click
// listener that dismisses it. Open and Close always attach and detach the
// two together.
type FilterPopup struct {
	doc      *Document
	list     *FilterList
	confirm  *ConfirmDialog
	engine   PositionEngine
	theme    theme.Theme
	tooltips *Tooltips
	opener   SheetOpener
	cfg      PopupConfig

	fileID  models.FileID
	sheet   int
	columns []string
	vp      Viewport

	open      bool
	column    int
	layer     LayerID
	listener  ListenerID
	placement Placement
}

// NewFilterPopup creates a closed popup drawing into doc
func NewFilterPopup(doc *Document, store api.FilterStore, tmpl api.TemplateSource, opener SheetOpener, tooltips *Tooltips, th theme.Theme, cfg PopupConfig) *FilterPopup {
	if cfg.Width <= 0 {
		cfg.Width = 44
	}
	if cfg.MinRight <= 0 {
		cfg.MinRight = cfg.Width
	}
	deps := ItemDeps{
		Store:     store,
		Templates: tmpl,
		Opener:    opener,
		Tooltips:  tooltips,
		Theme:     th,
	}
	list := NewFilterList(deps)
	list.Width = cfg.Width - 2

	confirm := NewConfirmDialog(th)
	confirm.Width = cfg.Width - 2

	return &FilterPopup{
		doc:      doc,
		list:     list,
		confirm:  confirm,
		engine:   PositionEngine{MinRight: cfg.MinRight},
		theme:    th,
		tooltips: tooltips,
		opener:   opener,
		cfg:      cfg,
	}
}

// SetSheet tells the popup which sheet new rules belong to
func (p *FilterPopup) SetSheet(fileID models.FileID, sheet int, columns []string) {
	p.fileID = fileID
	p.sheet = sheet
	p.columns = columns
}

// SetViewport updates the screen size and scroll offsets used for placement
func (p *FilterPopup) SetViewport(vp Viewport) {
	p.vp = vp
}

// IsOpen reports whether the popup is mounted
func (p *FilterPopup) IsOpen() bool { return p.open }

// Column returns the column the open popup edits
func (p *FilterPopup) Column() int { return p.column }

// List returns the item list of the popup
func (p *FilterPopup) List() *FilterList { return p.list }

// Placement returns where the popup was last placed
func (p *FilterPopup) Placement() Placement { return p.placement }

// Open shows the popup for column under trigger. An open popup is closed
// first, so reopening never stacks popups or listeners.
func (p *FilterPopup) Open(trigger Rect, column int) tea.Cmd {
	p.Close()

	buildCmd := p.list.Build(p.fileID, p.sheet, column)
	p.list.Title = p.title(column)

	p.placement = p.engine.Position(trigger, p.cfg.Width, p.vp)
	p.layer = p.doc.Mount(RoleFiltersList, p.placement.Top, max(p.placement.Left, 0))
	p.listener = p.doc.AddListener(p.outsideClick)
	p.column = column
	p.open = true
	p.Render()

	logger.Debug("filter popup opened", "sheet", p.sheet, "column", column,
		"top", p.placement.Top, "left", p.placement.Left)

	return tea.Batch(p.list.FetchTemplate(), buildCmd)
}

// Close removes the popup and its listener. Unsaved rules are discarded.
func (p *FilterPopup) Close() {
	if !p.open {
		return
	}
	p.doc.Unmount(p.layer)
	p.doc.RemoveListener(p.listener)
	p.list.Reset()
	p.confirm.Deactivate()
	p.open = false
	p.layer = 0
	p.listener = 0
}

func (p *FilterPopup) outsideClick(msg tea.MouseMsg) tea.Cmd {
	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionPress {
		return nil
	}
	if p.Contains(msg.X, msg.Y) {
		return nil
	}
	p.Close()
	return nil
}

// Contains reports whether (x, y) falls on the popup
func (p *FilterPopup) Contains(x, y int) bool {
	if !p.open {
		return false
	}
	l, ok := p.doc.Layer(p.layer)
	if !ok {
		return false
	}
	return l.Bounds().Contains(x, y)
}

func (p *FilterPopup) title(column int) string {
	name := fmt.Sprintf("column %d", column+1)
	if column >= 0 && column < len(p.columns) && p.columns[column] != "" {
		name = p.columns[column]
	}
	return "Filters · " + name
}

// Update routes messages belonging to the popup
func (p *FilterPopup) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case RulesLoadedMsg:
		cmd = p.list.HandleRulesLoaded(msg)

	case TemplateLoadedMsg:
		p.list.HandleTemplate(msg)

	case FilterSubmittedMsg:
		if item, ok := p.list.Item(msg.ItemKey); ok {
			cmd = item.HandleSubmitted(msg)
		} else if msg.Err != nil {
			logger.Error("filter submit failed after popup closed", "error", msg.Err)
		} else if p.opener != nil {
			// The popup was closed while the request was in flight and the
			// user may have moved to another sheet since
			cmd = p.opener.OpenSheet(p.opener.SheetIndex())
		}

	case FilterDeletedMsg:
		if msg.Err != nil {
			logger.Error("filter delete failed", "filter_id", msg.ID, "error", msg.Err)
		} else {
			logger.Info("filter deleted", "filter_id", msg.ID)
		}

	case DeleteRequestedMsg:
		cmd = p.requestDelete(msg.ItemKey)

	case ConfirmResultMsg:
		if msg.Confirmed {
			cmd = p.deleteItem(msg.Subject)
		}

	case tea.KeyMsg:
		if !p.open {
			return nil
		}
		if p.confirm.IsActive() {
			cmd = p.confirm.Update(msg)
		} else if msg.String() == "esc" {
			p.Close()
		} else {
			cmd = p.list.Update(msg)
		}

	case tea.MouseMsg:
		if !p.open || p.confirm.IsActive() || !p.Contains(msg.X, msg.Y) {
			return nil
		}
		_, cmd = p.list.HandleClick(msg)

	default:
		return nil
	}

	p.Render()
	return cmd
}

func (p *FilterPopup) requestDelete(key string) tea.Cmd {
	item, ok := p.list.Item(key)
	if !ok {
		return nil
	}
	if !p.cfg.ConfirmDelete {
		return p.deleteItem(key)
	}
	what := "this new filter"
	if id, ok := models.PersistedID(item.State()); ok {
		what = fmt.Sprintf("filter #%d", id)
	}
	p.confirm.Activate(key, "Delete "+what+"?")
	return nil
}

// deleteItem removes the item from the view whether or not the backend
// delete later succeeds
func (p *FilterPopup) deleteItem(key string) tea.Cmd {
	item, ok := p.list.Item(key)
	if !ok {
		return nil
	}
	cmd := item.DeleteCmd()
	p.list.Remove(key)
	return cmd
}

// Render redraws the popup into its layer
func (p *FilterPopup) Render() {
	if !p.open {
		return
	}

	body := p.list.View()
	if p.confirm.IsActive() {
		body += "\n\n" + p.confirm.View()
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.theme.BorderFocused).
		Width(p.cfg.Width - 2).
		Render(body)

	p.doc.SetContent(p.layer, box)
}
