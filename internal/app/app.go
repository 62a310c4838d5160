package app

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/config"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/sheet"
	"github.com/rebeliceyang/lazysheet/internal/ui/components"
	"github.com/rebeliceyang/lazysheet/internal/ui/help"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

// App is the main application model
type App struct {
	state  models.AppState
	config *config.Config
	theme  theme.Theme
	path   string

	doc       *components.Document
	tooltips  *components.Tooltips
	sheetView *components.SheetView
	popup     *components.FilterPopup

	// Error overlay
	showError    bool
	errorOverlay *components.ErrorOverlay

	changes <-chan struct{}
	status  string
}

// Options are the collaborators of the App
type Options struct {
	// Path the workbook was loaded from, used for reloads
	Path      string
	Workbook  *models.Workbook
	Store     api.FilterStore
	Templates api.TemplateSource
	// Changes fires when the file on disk changes. Nil disables reloads on change.
	Changes <-chan struct{}
}

// ErrorMsg is sent when an error occurs
type ErrorMsg struct {
	Title   string
	Message string
}

// FileChangedMsg is sent when the workbook changed on disk
type FileChangedMsg struct{}

// WorkbookLoadedMsg is sent when a (re)load finishes
type WorkbookLoadedMsg struct {
	Workbook *models.Workbook
	Err      error
}

// New creates a new App instance with config
func New(cfg *config.Config, opts Options) *App {
	if cfg == nil {
		cfg = config.GetDefaults()
	}
	state := models.NewAppState()
	state.Workbook = opts.Workbook

	th := theme.GetTheme(cfg.UI.Theme)
	doc := components.NewDocument()
	tooltips := components.NewTooltips(cfg.UI.Tooltips)

	sv := components.NewSheetView(opts.Store, th)
	sv.MaxCellWidth = cfg.Data.MaxCellDisplayLength
	sv.OriginY = 1
	sv.SetWorkbook(opts.Workbook)

	popup := components.NewFilterPopup(doc, opts.Store, opts.Templates, sv, tooltips, th, components.PopupConfig{
		Width:         cfg.UI.PopupWidth,
		MinRight:      cfg.UI.PopupMinRight,
		ConfirmDelete: cfg.UI.ConfirmDelete,
	})

	a := &App{
		state:        state,
		config:       cfg,
		theme:        th,
		path:         opts.Path,
		doc:          doc,
		tooltips:     tooltips,
		sheetView:    sv,
		popup:        popup,
		errorOverlay: components.NewErrorOverlay(th),
		changes:      opts.Changes,
	}
	a.syncPopupSheet()
	a.updateDimensions()
	return a
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.sheetView.OpenSheet(a.state.CurrentSheet), a.waitForChange())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ErrorMsg:
		a.ShowError(msg.Title, msg.Message)
		return a, nil

	case tea.WindowSizeMsg:
		a.state.Width = msg.Width
		a.state.Height = msg.Height
		a.updateDimensions()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		return a, a.handleMouse(msg)

	case components.SheetRulesLoadedMsg:
		a.sheetView.HandleRulesLoaded(msg)
		return a, nil

	case components.RulesLoadedMsg, components.TemplateLoadedMsg,
		components.FilterSubmittedMsg, components.FilterDeletedMsg,
		components.DeleteRequestedMsg, components.ConfirmResultMsg:
		return a, a.popup.Update(msg)

	case FileChangedMsg:
		logger.Info("file changed on disk, reloading", "path", a.path)
		return a, tea.Batch(a.reload(), a.waitForChange())

	case WorkbookLoadedMsg:
		if msg.Err != nil {
			a.ShowError("Reload Failed", fmt.Sprintf("Could not read %s:\n\n%v", a.path, msg.Err))
			return a, nil
		}
		a.popup.Close()
		a.state.Workbook = msg.Workbook
		a.sheetView.SetWorkbook(msg.Workbook)
		a.state.CurrentSheet = a.sheetView.SheetIndex()
		a.syncPopupSheet()
		a.status = "Reloaded"
		return a, a.sheetView.OpenSheet(a.state.CurrentSheet)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}

	// Handle error overlay dismissal first if visible
	if a.showError {
		switch key {
		case "esc", "enter":
			a.DismissError()
		case "q":
			return a, tea.Quit
		}
		return a, nil
	}

	if a.state.ViewMode == models.HelpMode {
		switch key {
		case "?", "esc", "q":
			a.state.ViewMode = models.NormalMode
		}
		return a, nil
	}

	if a.popup.IsOpen() {
		return a, a.popup.Update(msg)
	}

	a.status = ""
	switch key {
	case "q":
		return a, tea.Quit
	case "?":
		a.state.ViewMode = models.HelpMode
	case "f", "enter":
		return a, a.openPopup(a.sheetView.SelectedCol)
	case "[":
		return a, a.switchSheet(a.state.CurrentSheet - 1)
	case "]":
		return a, a.switchSheet(a.state.CurrentSheet + 1)
	case "y":
		if err := a.sheetView.CopySelected(); err != nil {
			logger.Warn("copy failed", "error", err)
			a.status = "Copy failed"
		} else {
			a.status = "Copied cell"
		}
	case "r", "f5":
		return a, a.reload()
	default:
		a.sheetView.Update(msg)
	}
	return a, nil
}

func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	a.tooltips.Update(msg)
	if a.showError || a.state.ViewMode == models.HelpMode {
		return nil
	}

	// Document listeners see every event first; the outside-click listener
	// may close the popup here.
	cmds := []tea.Cmd{a.doc.Dispatch(msg)}

	switch {
	case a.popup.IsOpen() && a.popup.Contains(msg.X, msg.Y):
		cmds = append(cmds, a.popup.Update(msg))
	default:
		if col, ok := a.sheetView.HandleClick(msg); ok {
			cmds = append(cmds, a.openPopup(col))
		} else if !a.popup.IsOpen() {
			a.sheetView.HandleWheel(msg)
		}
	}
	return tea.Batch(cmds...)
}

// openPopup shows the filters of column under its header icon
func (a *App) openPopup(column int) tea.Cmd {
	if a.state.Workbook == nil {
		return nil
	}
	trigger, ok := a.sheetView.IconRect(column)
	if !ok {
		a.sheetView.SelectedCol = column
		a.sheetView.MoveColumn(0)
		if trigger, ok = a.sheetView.IconRect(column); !ok {
			return nil
		}
	}
	a.syncPopupSheet()
	return a.popup.Open(trigger, column)
}

func (a *App) switchSheet(index int) tea.Cmd {
	if _, ok := a.state.Workbook.Sheet(index); !ok {
		return nil
	}
	a.popup.Close()
	cmd := a.sheetView.OpenSheet(index)
	a.state.CurrentSheet = index
	a.syncPopupSheet()
	return cmd
}

func (a *App) syncPopupSheet() {
	if a.state.Workbook == nil {
		return
	}
	s := a.sheetView.Sheet()
	a.popup.SetSheet(a.state.Workbook.FileID, a.sheetView.SheetIndex(), s.Columns)
}

func (a *App) reload() tea.Cmd {
	if a.path == "" {
		return nil
	}
	path, delimiter := a.path, a.config.Data.Delimiter
	return func() tea.Msg {
		wb, err := sheet.Load(path, delimiter)
		return WorkbookLoadedMsg{Workbook: wb, Err: err}
	}
}

func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	changes := a.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return FileChangedMsg{}
	}
}

// updateDimensions sizes the sheet view between the top and bottom bars
func (a *App) updateDimensions() {
	if a.state.Width <= 0 || a.state.Height <= 0 {
		return
	}
	a.sheetView.Width = a.state.Width
	a.sheetView.Height = max(a.state.Height-2, 3)
	a.popup.SetViewport(components.Viewport{Width: a.state.Width, Height: a.state.Height})
}

// View implements tea.Model
func (a *App) View() string {
	// If error overlay is showing, render it centered on top of everything
	if a.showError {
		return lipgloss.Place(
			a.state.Width, a.state.Height,
			lipgloss.Center, lipgloss.Center,
			a.errorOverlay.View(),
		)
	}

	if a.state.ViewMode == models.HelpMode {
		return help.Render(a.state.Width, a.state.Height, a.theme)
	}

	return zone.Scan(a.doc.Render(a.renderNormalView(), a.state.Height))
}

// renderNormalView renders the bars and the sheet
func (a *App) renderNormalView() string {
	topBarLeft := "lazysheet"
	if wb := a.state.Workbook; wb != nil {
		topBarLeft += " · " + wb.Name
	}
	topBarRight := a.sheetTabs()
	topBar := lipgloss.NewStyle().
		Width(a.state.Width).
		Background(a.theme.BorderFocused).
		Foreground(a.theme.Background).
		Padding(0, 2).
		Render(a.formatStatusBar(topBarLeft, topBarRight))

	bottomBarLeft := "[f] Filters | [?] Help | [q] Quit"
	if a.popup.IsOpen() {
		bottomBarLeft = "[ctrl+n] Add | [ctrl+s] Save | [esc] Close"
	}
	bottomBarRight := a.status
	if tip := a.tooltips.Text(); tip != "" {
		bottomBarRight = tip
	}
	bottomBar := lipgloss.NewStyle().
		Width(a.state.Width).
		Background(a.theme.Selection).
		Foreground(a.theme.Foreground).
		Padding(0, 2).
		Render(a.formatStatusBar(bottomBarLeft, bottomBarRight))

	body := a.sheetView.View()
	if a.state.Workbook == nil {
		body = lipgloss.NewStyle().Foreground(a.theme.Muted).Render("No file loaded")
	}
	body = lipgloss.NewStyle().
		Width(a.state.Width).
		Height(a.sheetView.Height).
		MaxHeight(a.sheetView.Height).
		Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, topBar, body, bottomBar)
}

func (a *App) sheetTabs() string {
	wb := a.state.Workbook
	if wb == nil || len(wb.Sheets) < 2 {
		return ""
	}
	var parts []string
	for i, s := range wb.Sheets {
		if i == a.state.CurrentSheet {
			parts = append(parts, "["+s.Name+"]")
		} else {
			parts = append(parts, s.Name)
		}
	}
	return strings.Join(parts, " ")
}

// formatStatusBar formats a status bar with left and right aligned content
func (a *App) formatStatusBar(left, right string) string {
	// Account for padding (2 chars on each side = 4 total)
	availableWidth := max(a.state.Width-4, 0)

	leftLen := runewidth.StringWidth(left)
	rightLen := runewidth.StringWidth(right)

	// If content is too wide, truncate
	if leftLen+rightLen > availableWidth {
		if availableWidth > rightLen {
			return runewidth.Truncate(left, availableWidth-rightLen, "") + right
		}
		return runewidth.Truncate(left, availableWidth, "")
	}

	spacing := availableWidth - leftLen - rightLen
	return left + strings.Repeat(" ", spacing) + right
}

// ShowError displays an error overlay with the given title and message
func (a *App) ShowError(title, message string) {
	a.errorOverlay.SetError(title, message)
	a.showError = true
}

// DismissError hides the error overlay
func (a *App) DismissError() {
	a.showError = false
}
