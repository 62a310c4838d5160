package components

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/ui/theme"
)

type popupHarness struct {
	doc      *Document
	store    *fakeStore
	opener   *fakeOpener
	tmpl     *fakeTemplates
	tooltips *Tooltips
	popup    *FilterPopup
}

func newPopupHarness(confirmDelete bool, rules ...models.StoredRule) *popupHarness {
	h := &popupHarness{
		doc:      NewDocument(),
		store:    newFakeStore(rules...),
		opener:   &fakeOpener{},
		tmpl:     &fakeTemplates{},
		tooltips: NewTooltips(true),
	}
	h.popup = NewFilterPopup(h.doc, h.store, h.tmpl, h.opener, h.tooltips, theme.DefaultTheme(), PopupConfig{
		Width:         44,
		MinRight:      44,
		ConfirmDelete: confirmDelete,
	})
	h.popup.SetSheet(testScope.FileID, testScope.Sheet, []string{"id", "name", "city"})
	h.popup.SetViewport(Viewport{Width: 120, Height: 40})
	return h
}

var testTrigger = Rect{X: 60, Y: 0, Width: 1, Height: 1}

func (h *popupHarness) send(msg tea.Msg) {
	drive(h.popup.Update, h.popup.Update(msg))
}

func (h *popupHarness) open(column int) {
	drive(h.popup.Update, h.popup.Open(testTrigger, column))
}

func (h *popupHarness) inputs() []string {
	var out []string
	for _, it := range h.popup.List().Items() {
		out = append(out, it.Input())
	}
	return out
}

// S1
func TestFilterPopup_EmptyColumn(t *testing.T) {
	h := newPopupHarness(true)
	h.open(testScope.Column)

	if h.popup.List().Len() != 0 {
		t.Errorf("len = %d, want 0", h.popup.List().Len())
	}
	view := h.doc.Render("", 0)
	if !strings.Contains(view, "Add filter") {
		t.Errorf("add affordance missing:\n%s", view)
	}
	if !strings.Contains(view, "Filters · city") {
		t.Errorf("title missing:\n%s", view)
	}
}

// S2
func TestFilterPopup_AddSubmit(t *testing.T) {
	h := newPopupHarness(true)
	h.store.nextID = 41
	h.open(testScope.Column)

	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	h.send(keyRunes("foo"))
	h.send(tea.KeyMsg{Type: tea.KeyCtrlS})

	if len(h.store.added) != 1 {
		t.Fatalf("adds = %d, want 1", len(h.store.added))
	}
	got := h.store.added[0]
	if got.Input != "foo" || got.Scope != testScope || !got.Enabled {
		t.Errorf("added = %+v", got)
	}
	item := h.popup.List().Items()[0]
	if id, ok := models.PersistedID(item.State()); !ok || id != 42 {
		t.Errorf("state = %#v, want persisted 42", item.State())
	}
	if len(h.opener.sheets) != 1 {
		t.Errorf("OpenSheet called %d times, want 1", len(h.opener.sheets))
	}
	if len(h.store.updated) != 0 {
		t.Errorf("unpersisted rule produced %d updates", len(h.store.updated))
	}
}

// S3
func TestFilterPopup_ToggleSubmit(t *testing.T) {
	h := newPopupHarness(true, storedRule(7, testScope, models.MethodEquals, "x", true))
	h.open(testScope.Column)

	item := h.popup.List().Items()[0]
	item.Toggle()
	drive(h.popup.Update, item.Submit())

	if len(h.store.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(h.store.updated))
	}
	if got := h.store.updated[0]; got.ID != 7 || got.Rule.Enabled || got.Rule.Input != "x" {
		t.Errorf("update = %+v", got)
	}
	if len(h.store.added) != 0 {
		t.Errorf("persisted rule produced %d adds", len(h.store.added))
	}
	if len(h.opener.sheets) != 1 {
		t.Errorf("OpenSheet called %d times, want 1", len(h.opener.sheets))
	}
}

// S4
func TestFilterPopup_DeleteConfirmed(t *testing.T) {
	h := newPopupHarness(true, storedRule(7, testScope, models.MethodEquals, "x", true))
	h.store.deleteErr = errors.New("backend down")
	h.open(testScope.Column)

	key := h.popup.List().Items()[0].Key
	h.send(DeleteRequestedMsg{ItemKey: key})
	if len(h.store.deleted) != 0 {
		t.Fatal("delete ran before confirmation")
	}
	if !strings.Contains(h.doc.Render("", 0), "Delete filter #7?") {
		t.Error("confirmation prompt not shown")
	}

	h.send(keyRunes("y"))

	if len(h.store.deleted) != 1 || h.store.deleted[0] != 7 {
		t.Errorf("deleted = %v, want [7]", h.store.deleted)
	}
	if h.popup.List().Len() != 0 {
		t.Error("item not removed after failed delete")
	}
	if len(h.opener.sheets) != 0 {
		t.Error("delete refreshed the sheet")
	}
}

func TestFilterPopup_DeleteDeclined(t *testing.T) {
	h := newPopupHarness(true, storedRule(7, testScope, models.MethodEquals, "x", true))
	h.open(testScope.Column)

	key := h.popup.List().Items()[0].Key
	h.send(DeleteRequestedMsg{ItemKey: key})
	h.send(tea.KeyMsg{Type: tea.KeyEsc})

	if len(h.store.deleted) != 0 {
		t.Error("declined delete reached the store")
	}
	if h.popup.List().Len() != 1 {
		t.Error("declined delete removed the item")
	}
	if !h.popup.IsOpen() {
		t.Error("esc on the confirmation closed the popup")
	}
}

func TestFilterPopup_DeleteUnpersisted(t *testing.T) {
	h := newPopupHarness(false)
	h.open(testScope.Column)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})

	key := h.popup.List().Items()[0].Key
	h.send(DeleteRequestedMsg{ItemKey: key})

	if len(h.store.deleted) != 0 {
		t.Error("unpersisted delete reached the store")
	}
	if h.popup.List().Len() != 0 {
		t.Error("unpersisted item not removed")
	}
}

// S5
func TestFilterPopup_OutsideClickCloses(t *testing.T) {
	h := newPopupHarness(true)
	h.open(testScope.Column)

	p := h.popup.Placement()
	h.doc.Dispatch(leftClick(p.Left+2, p.Top+1))
	if !h.popup.IsOpen() {
		t.Fatal("click inside closed the popup")
	}

	h.doc.Dispatch(leftClick(p.Left+2, p.Top+30))
	if h.popup.IsOpen() {
		t.Error("click outside did not close the popup")
	}
	if n := h.doc.CountRole(RoleFiltersList); n != 0 {
		t.Errorf("%d popups left in the document", n)
	}
	if n := h.doc.ListenerCount(); n != 0 {
		t.Errorf("%d listeners left attached", n)
	}
}

func TestFilterPopup_NonLeftClickIgnored(t *testing.T) {
	h := newPopupHarness(true)
	h.open(testScope.Column)

	h.doc.Dispatch(tea.MouseMsg{X: 0, Y: 39, Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	h.doc.Dispatch(tea.MouseMsg{X: 0, Y: 39, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	if !h.popup.IsOpen() {
		t.Error("wheel or release closed the popup")
	}
}

func TestFilterPopup_SinglePopupAcrossReopens(t *testing.T) {
	h := newPopupHarness(true)

	for i := 0; i < 5; i++ {
		h.open(i % 3)
		if n := h.doc.CountRole(RoleFiltersList); n != 1 {
			t.Fatalf("open %d: %d popups", i, n)
		}
		if n := h.doc.ListenerCount(); n != 1 {
			t.Fatalf("open %d: %d listeners", i, n)
		}
	}

	for i := 0; i < 3; i++ {
		h.popup.Close()
		h.open(testScope.Column)
		h.doc.Dispatch(leftClick(0, 39))
	}
	if n := h.doc.ListenerCount(); n != 0 {
		t.Errorf("%d listeners left after open/close cycles", n)
	}
	if n := h.doc.CountRole(RoleFiltersList); n != 0 {
		t.Errorf("%d popups left after open/close cycles", n)
	}
}

func TestFilterPopup_ReopenIsIdempotent(t *testing.T) {
	h := newPopupHarness(true,
		storedRule(3, testScope, models.MethodEquals, "a", true),
		storedRule(4, testScope, models.MethodRegex, "b+", false),
	)

	h.open(testScope.Column)
	first := strings.Join(h.inputs(), ",")
	h.open(testScope.Column)
	second := strings.Join(h.inputs(), ",")

	if first != "a,b+" || first != second {
		t.Errorf("first = %q, second = %q", first, second)
	}
}

func TestFilterPopup_CloseDiscardsUnsaved(t *testing.T) {
	h := newPopupHarness(true, storedRule(3, testScope, models.MethodEquals, "a", true))
	h.open(testScope.Column)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})
	h.send(keyRunes("draft"))

	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	if h.popup.IsOpen() {
		t.Fatal("esc did not close the popup")
	}

	h.open(testScope.Column)
	if got := strings.Join(h.inputs(), ","); got != "a" {
		t.Errorf("items after reopen = %q, want a", got)
	}
	if len(h.store.added) != 0 {
		t.Error("closing submitted the draft")
	}
}

func TestFilterPopup_SubmitAfterCloseStillRefreshes(t *testing.T) {
	h := newPopupHarness(true)
	h.open(testScope.Column)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})
	h.send(keyRunes("foo"))

	cmd := h.popup.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	h.popup.Close()
	drive(h.popup.Update, cmd)

	if len(h.store.added) != 1 {
		t.Fatalf("adds = %d, want 1", len(h.store.added))
	}
	if len(h.opener.sheets) != 1 {
		t.Errorf("OpenSheet called %d times, want 1", len(h.opener.sheets))
	}
}

func TestFilterPopup_SubmitAfterCloseRefreshesCurrentSheet(t *testing.T) {
	h := newPopupHarness(true)
	h.open(testScope.Column)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})
	h.send(keyRunes("foo"))

	cmd := h.popup.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	h.popup.Close()
	h.opener.current = testScope.Sheet + 1
	drive(h.popup.Update, cmd)

	if len(h.opener.sheets) != 1 || h.opener.sheets[0] != testScope.Sheet+1 {
		t.Errorf("OpenSheet calls = %v, want [%d]", h.opener.sheets, testScope.Sheet+1)
	}
}

func TestFilterPopup_TemplateFailureDegrades(t *testing.T) {
	h := newPopupHarness(true, storedRule(3, testScope, models.MethodEquals, "a", true))
	h.tmpl.err = errors.New("404")
	h.open(testScope.Column)

	view := h.doc.Render("", 0)
	if !strings.Contains(view, "Add filter") {
		t.Errorf("popup did not render without templates:\n%s", view)
	}
	if h.popup.List().Len() != 1 {
		t.Errorf("len = %d, want 1", h.popup.List().Len())
	}
}

func TestFilterPopup_FetchesTemplates(t *testing.T) {
	h := newPopupHarness(true, storedRule(3, testScope, models.MethodEquals, "a", true))
	h.open(testScope.Column)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})

	var list, item int
	for _, p := range h.tmpl.fetched {
		switch p {
		case "filter/filter_list.tmpl":
			list++
		case "filter/filter_item.tmpl":
			item++
		}
	}
	if list != 1 {
		t.Errorf("list template fetched %d times, want 1", list)
	}
	if item != 2 {
		t.Errorf("item template fetched %d times, want 2", item)
	}
}

func TestFilterPopup_Placement(t *testing.T) {
	h := newPopupHarness(true)
	drive(h.popup.Update, h.popup.Open(Rect{X: 3, Y: 5, Width: 1, Height: 1}, 0))

	p := h.popup.Placement()
	if p.Top != 6 || p.Right != 44 || p.Left != 0 {
		t.Errorf("placement = %+v", p)
	}
	if !h.popup.Contains(0, 6) || h.popup.Contains(44, 6) {
		t.Error("popup bounds do not match its placement")
	}
}

func TestFilterPopup_MinRightDefaultsToWidth(t *testing.T) {
	doc := NewDocument()
	popup := NewFilterPopup(doc, newFakeStore(), &fakeTemplates{}, &fakeOpener{}, NewTooltips(true), theme.DefaultTheme(), PopupConfig{Width: 30})
	popup.SetSheet(testScope.FileID, testScope.Sheet, []string{"id"})
	popup.SetViewport(Viewport{Width: 120, Height: 40})
	drive(popup.Update, popup.Open(Rect{X: 2, Y: 0, Width: 1, Height: 1}, 0))

	p := popup.Placement()
	if p.Right != 30 || p.Left != 0 {
		t.Errorf("placement = %+v, want right edge clamped to the width", p)
	}
}
