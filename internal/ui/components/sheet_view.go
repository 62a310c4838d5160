package components

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/filter"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

const (
	filterIcon       = "▽"
	filterIconActive = "▼"
	minColumnWidth   = 6
)

// SheetRulesLoadedMsg carries the rules of a whole sheet
type SheetRulesLoadedMsg struct {
	Seq   int
	Sheet int
	Rules []models.StoredRule
	Err   error
}

// SheetView displays one sheet of a workbook with its filter rules applied
type SheetView struct {
	Width  int
	Height int
	// Screen cell of the view's top-left corner
	OriginX, OriginY int
	MaxCellWidth     int
	Theme            theme.Theme

	store   api.FilterStore
	builder *filter.Builder

	workbook *models.Workbook
	sheet    int
	rows     [][]string
	rules    []models.StoredRule
	active   map[int]int
	ruleErrs []error
	loadErr  error
	seq      int

	// Virtual scrolling state
	TopRow      int
	SelectedRow int
	SelectedCol int
	LeftCol     int

	widths []int
}

var _ SheetOpener = (*SheetView)(nil)

// NewSheetView creates an empty sheet view
func NewSheetView(store api.FilterStore, th theme.Theme) *SheetView {
	return &SheetView{
		MaxCellWidth: 40,
		Theme:        th,
		store:        store,
		builder:      filter.NewBuilder(),
		active:       make(map[int]int),
	}
}

// SetWorkbook replaces the data. The current sheet is kept when it still exists.
func (sv *SheetView) SetWorkbook(wb *models.Workbook) {
	sv.workbook = wb
	if _, ok := wb.Sheet(sv.sheet); !ok {
		sv.sheet = 0
	}
	s, _ := wb.Sheet(sv.sheet)
	sv.apply(s)
}

// Workbook returns the displayed workbook
func (sv *SheetView) Workbook() *models.Workbook { return sv.workbook }

// SheetIndex returns the displayed sheet
func (sv *SheetView) SheetIndex() int { return sv.sheet }

// Sheet returns the displayed sheet
func (sv *SheetView) Sheet() models.Sheet {
	s, _ := sv.workbook.Sheet(sv.sheet)
	return s
}

// Rows returns the rows that pass the sheet's rules
func (sv *SheetView) Rows() [][]string { return sv.rows }

// Rules returns the rules of the displayed sheet
func (sv *SheetView) Rules() []models.StoredRule { return sv.rules }

// ActiveRules returns how many enabled rules filter column
func (sv *SheetView) ActiveRules(column int) int { return sv.active[column] }

// OpenSheet shows sheet and fetches its rules. Rows stay unfiltered until the
// rules arrive.
func (sv *SheetView) OpenSheet(sheet int) tea.Cmd {
	s, ok := sv.workbook.Sheet(sheet)
	if !ok {
		return nil
	}
	if sheet != sv.sheet {
		sv.sheet = sheet
		sv.rules = nil
		sv.active = make(map[int]int)
		sv.TopRow, sv.SelectedRow, sv.SelectedCol, sv.LeftCol = 0, 0, 0, 0
		sv.apply(s)
	}

	sv.seq++
	if sv.store == nil {
		return nil
	}

	seq, fileID, store := sv.seq, sv.workbook.FileID, sv.store
	return func() tea.Msg {
		rules, err := store.GetForSheet(context.Background(), fileID, sheet)
		return SheetRulesLoadedMsg{Seq: seq, Sheet: sheet, Rules: rules, Err: err}
	}
}

// HandleRulesLoaded applies fetched rules. Results of an older open are dropped.
func (sv *SheetView) HandleRulesLoaded(msg SheetRulesLoadedMsg) {
	if msg.Seq != sv.seq || msg.Sheet != sv.sheet {
		return
	}
	if msg.Err != nil {
		logger.Error("failed to fetch sheet filters", "sheet", msg.Sheet, "error", msg.Err)
		sv.loadErr = msg.Err
		return
	}
	sv.loadErr = nil
	sv.rules = msg.Rules
	sv.active = make(map[int]int)
	for _, r := range msg.Rules {
		if r.Enabled {
			sv.active[r.Scope.Column]++
		}
	}
	sv.apply(sv.Sheet())
}

func (sv *SheetView) apply(s models.Sheet) {
	rows, errs := sv.builder.Apply(s, sv.rules)
	for _, err := range errs {
		logger.Warn("skipping filter", "error", err)
	}
	sv.rows = rows
	sv.ruleErrs = errs

	if sv.SelectedRow >= len(sv.rows) {
		sv.SelectedRow = max(len(sv.rows)-1, 0)
	}
	if sv.TopRow > sv.SelectedRow {
		sv.TopRow = sv.SelectedRow
	}
	sv.calculateColumnWidths()
}

// calculateColumnWidths sizes columns to their widest cell. Headers reserve
// room for the filter icon.
func (sv *SheetView) calculateColumnWidths() {
	s := sv.Sheet()
	sv.widths = make([]int, len(s.Columns))

	iconWidth := runewidth.StringWidth(filterIcon)
	for i, col := range s.Columns {
		sv.widths[i] = runewidth.StringWidth(col) + 1 + iconWidth
	}
	for _, row := range sv.rows {
		for i, cell := range row {
			if i < len(sv.widths) {
				if w := runewidth.StringWidth(cell); w > sv.widths[i] {
					sv.widths[i] = w
				}
			}
		}
	}

	maxWidth := sv.MaxCellWidth
	if maxWidth < minColumnWidth {
		maxWidth = minColumnWidth
	}
	for i := range sv.widths {
		if sv.widths[i] > maxWidth {
			sv.widths[i] = maxWidth
		}
		if sv.widths[i] < minColumnWidth {
			sv.widths[i] = minColumnWidth
		}
	}
}

// visibleRows is the number of data rows that fit under the header
func (sv *SheetView) visibleRows() int {
	// Header + separator + status
	return max(sv.Height-3, 1)
}

// lastVisibleCol returns the index after the last column that fits
func (sv *SheetView) lastVisibleCol() int {
	x := 1
	end := sv.LeftCol
	for end < len(sv.widths) {
		w := sv.widths[end]
		if end > sv.LeftCol {
			w += 3
		}
		if sv.Width > 0 && x+w > sv.Width && end > sv.LeftCol {
			break
		}
		x += w
		end++
	}
	return end
}

func iconZoneID(column int) string {
	return "sheet-filter-" + strconv.Itoa(column)
}

// IconRect is the screen rectangle of a column's filter icon
func (sv *SheetView) IconRect(column int) (Rect, bool) {
	if column < sv.LeftCol || column >= sv.lastVisibleCol() {
		return Rect{}, false
	}
	x := sv.OriginX + 1
	for i := sv.LeftCol; i < column; i++ {
		x += sv.widths[i] + 3
	}
	w := runewidth.StringWidth(filterIcon)
	return Rect{X: x + sv.widths[column] - w, Y: sv.OriginY, Width: w, Height: 1}, true
}

// HandleClick returns the column whose filter icon was clicked
func (sv *SheetView) HandleClick(msg tea.MouseMsg) (int, bool) {
	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionPress {
		return 0, false
	}
	for i := sv.LeftCol; i < sv.lastVisibleCol(); i++ {
		if zone.Get(iconZoneID(i)).InBounds(msg) {
			sv.SelectedCol = i
			return i, true
		}
	}
	return 0, false
}

// View renders the sheet
func (sv *SheetView) View() string {
	s := sv.Sheet()
	if len(s.Columns) == 0 {
		return lipgloss.NewStyle().Foreground(sv.Theme.Muted).Render("No data")
	}

	var b strings.Builder
	b.WriteString(sv.renderHeader())
	b.WriteString("\n")
	b.WriteString(sv.renderSeparator())
	b.WriteString("\n")

	end := min(sv.TopRow+sv.visibleRows(), len(sv.rows))
	for i := sv.TopRow; i < end; i++ {
		b.WriteString(sv.renderRow(i))
		b.WriteString("\n")
	}
	for i := end - sv.TopRow; i < sv.visibleRows(); i++ {
		b.WriteString("\n")
	}

	b.WriteString(sv.renderStatus())
	return b.String()
}

func (sv *SheetView) renderHeader() string {
	s := sv.Sheet()
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(sv.Theme.TableHeader)
	iconStyle := lipgloss.NewStyle().Foreground(sv.Theme.FilterIcon)
	activeStyle := lipgloss.NewStyle().Foreground(sv.Theme.FilterIconActive).Bold(true)

	var parts []string
	for i := sv.LeftCol; i < sv.lastVisibleCol(); i++ {
		icon := iconStyle.Render(filterIcon)
		if sv.active[i] > 0 {
			icon = activeStyle.Render(filterIconActive)
		}
		name := pad(s.Columns[i], sv.widths[i]-1-runewidth.StringWidth(filterIcon))
		style := headerStyle
		if i == sv.SelectedCol {
			style = style.Underline(true)
		}
		parts = append(parts, style.Render(name)+" "+zone.Mark(iconZoneID(i), icon))
	}
	return " " + strings.Join(parts, " │ ") + " "
}

func (sv *SheetView) renderSeparator() string {
	var parts []string
	for i := sv.LeftCol; i < sv.lastVisibleCol(); i++ {
		parts = append(parts, strings.Repeat("─", sv.widths[i]))
	}
	return lipgloss.NewStyle().Foreground(sv.Theme.Border).
		Render("─" + strings.Join(parts, "─┼─") + "─")
}

func (sv *SheetView) renderRow(index int) string {
	row := sv.rows[index]
	var parts []string
	for i := sv.LeftCol; i < sv.lastVisibleCol(); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		text := pad(cell, sv.widths[i])
		if index == sv.SelectedRow && i == sv.SelectedCol {
			text = lipgloss.NewStyle().Reverse(true).Render(text)
		}
		parts = append(parts, text)
	}
	line := " " + strings.Join(parts, " │ ") + " "

	if index == sv.SelectedRow {
		return lipgloss.NewStyle().Background(sv.Theme.TableRowSelected).Render(line)
	}
	if index%2 == 1 {
		return lipgloss.NewStyle().Background(sv.Theme.TableRowOdd).Render(line)
	}
	return line
}

func (sv *SheetView) renderStatus() string {
	s := sv.Sheet()
	total := len(s.Rows)
	shown := len(sv.rows)

	status := fmt.Sprintf(" %s · %d of %d rows", s.Name, shown, total)
	if n := len(sv.rules); n > 0 {
		status += fmt.Sprintf(" · %d filters", n)
	}

	style := lipgloss.NewStyle().Foreground(sv.Theme.Muted).Italic(true)
	switch {
	case sv.loadErr != nil:
		status += " · " + lipgloss.NewStyle().Foreground(sv.Theme.Error).Render("filters unavailable")
	case len(sv.ruleErrs) > 0:
		status += " · " + lipgloss.NewStyle().Foreground(sv.Theme.Warning).
			Render(fmt.Sprintf("%d filters skipped", len(sv.ruleErrs)))
	}
	return style.Render(status)
}

func pad(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// MoveSelection moves the selection up or down
func (sv *SheetView) MoveSelection(delta int) {
	sv.SelectedRow += delta

	if sv.SelectedRow >= len(sv.rows) {
		sv.SelectedRow = len(sv.rows) - 1
	}
	if sv.SelectedRow < 0 {
		sv.SelectedRow = 0
	}

	if sv.SelectedRow < sv.TopRow {
		sv.TopRow = sv.SelectedRow
	}
	if sv.SelectedRow >= sv.TopRow+sv.visibleRows() {
		sv.TopRow = sv.SelectedRow - sv.visibleRows() + 1
	}
}

// MoveColumn moves the selected column and scrolls it into view
func (sv *SheetView) MoveColumn(delta int) {
	sv.SelectedCol += delta
	if sv.SelectedCol >= len(sv.widths) {
		sv.SelectedCol = len(sv.widths) - 1
	}
	if sv.SelectedCol < 0 {
		sv.SelectedCol = 0
	}

	if sv.SelectedCol < sv.LeftCol {
		sv.LeftCol = sv.SelectedCol
	}
	for sv.SelectedCol >= sv.lastVisibleCol() && sv.LeftCol < sv.SelectedCol {
		sv.LeftCol++
	}
}

// PageUp moves the selection one screen up
func (sv *SheetView) PageUp() {
	sv.MoveSelection(-sv.visibleRows())
}

// PageDown moves the selection one screen down
func (sv *SheetView) PageDown() {
	sv.MoveSelection(sv.visibleRows())
}

// SelectedCell returns the value under the cursor
func (sv *SheetView) SelectedCell() (string, bool) {
	if sv.SelectedRow < 0 || sv.SelectedRow >= len(sv.rows) {
		return "", false
	}
	row := sv.rows[sv.SelectedRow]
	if sv.SelectedCol < 0 || sv.SelectedCol >= len(row) {
		return "", false
	}
	return row[sv.SelectedCol], true
}

// CopySelected puts the selected cell on the system clipboard
func (sv *SheetView) CopySelected() error {
	cell, ok := sv.SelectedCell()
	if !ok {
		return fmt.Errorf("no cell selected")
	}
	return clipboard.WriteAll(cell)
}

// Update handles navigation keys
func (sv *SheetView) Update(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		sv.MoveSelection(-1)
	case "down", "j":
		sv.MoveSelection(1)
	case "left", "h":
		sv.MoveColumn(-1)
	case "right", "l":
		sv.MoveColumn(1)
	case "ctrl+u", "pgup":
		sv.PageUp()
	case "ctrl+d", "pgdown":
		sv.PageDown()
	case "g", "home":
		sv.MoveSelection(-len(sv.rows))
	case "G", "end":
		sv.MoveSelection(len(sv.rows))
	}
}

// HandleWheel scrolls with the mouse wheel
func (sv *SheetView) HandleWheel(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		sv.MoveSelection(-3)
	case tea.MouseButtonWheelDown:
		sv.MoveSelection(3)
	default:
		return false
	}
	return true
}
