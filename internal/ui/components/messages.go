package components

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/models"
)

// SheetOpener re-renders a sheet with its current rules applied
type SheetOpener interface {
	OpenSheet(sheet int) tea.Cmd
	// SheetIndex is the sheet on screen
	SheetIndex() int
}

// RulesLoadedMsg carries the rules of the column a list was built for
type RulesLoadedMsg struct {
	Token string
	Scope models.Scope
	Rules []models.StoredRule
	Err   error
}

// TemplateLoadedMsg carries a fetched layout. Owner is the item key or the
// popup build token that asked for it.
type TemplateLoadedMsg struct {
	Owner string
	Path  string
	Text  string
	Err   error
}

// FilterSubmittedMsg is the result of an add or update
type FilterSubmittedMsg struct {
	ItemKey string
	Sheet   int
	Added   bool
	ID      models.FilterID
	Rule    models.FilterRule
	Err     error
}

// FilterDeletedMsg is the result of a fire-and-forget delete
type FilterDeletedMsg struct {
	ID  models.FilterID
	Err error
}

// DeleteRequestedMsg asks the popup to confirm and delete an item
type DeleteRequestedMsg struct {
	ItemKey string
}

func fetchTemplate(src api.TemplateSource, owner, path string) tea.Cmd {
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		text, err := src.Template(context.Background(), path)
		return TemplateLoadedMsg{Owner: owner, Path: path, Text: text, Err: err}
	}
}
