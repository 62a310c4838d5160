package components

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/templates"
)

func init() {
	// Initialize bubblezone for tests that call View() methods
	zone.NewGlobal()
}

type updateCall struct {
	ID   models.FilterID
	Rule models.FilterRule
}

// fakeStore is an in-memory FilterStore that records every call
type fakeStore struct {
	rules  []models.StoredRule
	nextID models.FilterID

	getAtCalls int
	added      []models.FilterRule
	updated    []updateCall
	deleted    []models.FilterID

	getErr, addErr, updateErr, deleteErr error
}

func newFakeStore(rules ...models.StoredRule) *fakeStore {
	s := &fakeStore{rules: rules}
	for _, r := range rules {
		if r.ID > s.nextID {
			s.nextID = r.ID
		}
	}
	return s
}

func (s *fakeStore) GetAt(_ context.Context, scope models.Scope) ([]models.StoredRule, error) {
	s.getAtCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []models.StoredRule
	for _, r := range s.rules {
		if r.Scope == scope {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetForSheet(_ context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []models.StoredRule
	for _, r := range s.rules {
		if r.Scope.FileID == fileID && r.Scope.Sheet == sheet {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) Add(_ context.Context, rule models.FilterRule) (models.FilterID, error) {
	s.added = append(s.added, rule)
	if s.addErr != nil {
		return 0, s.addErr
	}
	s.nextID++
	s.rules = append(s.rules, models.StoredRule{ID: s.nextID, FilterRule: rule})
	return s.nextID, nil
}

func (s *fakeStore) Update(_ context.Context, id models.FilterID, rule models.FilterRule) error {
	s.updated = append(s.updated, updateCall{ID: id, Rule: rule})
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].Method = rule.Method
			s.rules[i].Input = rule.Input
			s.rules[i].Enabled = rule.Enabled
			return nil
		}
	}
	return errors.New("filter not found")
}

func (s *fakeStore) Delete(_ context.Context, id models.FilterID) error {
	s.deleted = append(s.deleted, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			break
		}
	}
	return nil
}

// fakeTemplates serves the embedded layouts unless told otherwise
type fakeTemplates struct {
	overrides map[string]string
	err       error
	fetched   []string
}

func (f *fakeTemplates) Template(_ context.Context, path string) (string, error) {
	f.fetched = append(f.fetched, path)
	if f.err != nil {
		return "", f.err
	}
	if text, ok := f.overrides[path]; ok {
		return text, nil
	}
	return templates.Read(path)
}

// fakeOpener counts sheet refreshes
type fakeOpener struct {
	current int
	sheets  []int
}

func (o *fakeOpener) SheetIndex() int { return o.current }

func (o *fakeOpener) OpenSheet(sheet int) tea.Cmd {
	o.sheets = append(o.sheets, sheet)
	return nil
}

// runCmd executes cmd and every command it batches, returning the messages
// in order
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// drive feeds cmd's messages back into update until nothing is left
func drive(update func(tea.Msg) tea.Cmd, cmd tea.Cmd) {
	queue := runCmd(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		queue = append(queue, runCmd(update(msg))...)
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func leftClick(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}
}

func storedRule(id models.FilterID, scope models.Scope, method models.Method, input string, enabled bool) models.StoredRule {
	return models.StoredRule{
		ID: id,
		FilterRule: models.FilterRule{
			Scope:   scope,
			Method:  method,
			Input:   input,
			Enabled: enabled,
		},
	}
}
