// Package store defines the persistence contract of the filter backend.
package store

import (
	"context"
	"errors"

	"github.com/rebeliceyang/lazysheet/internal/models"
)

// ErrNotFound is returned when a filter id does not exist
var ErrNotFound = errors.New("filter not found")

// Store persists filter rules and their file/sheet/column relationship
type Store interface {
	// Add persists a new rule and returns its id
	Add(ctx context.Context, rule models.FilterRule) (models.FilterID, error)
	// Update replaces method, input and enabled of an existing rule
	Update(ctx context.Context, id models.FilterID, method models.Method, input string, enabled bool) error
	// Delete removes a rule
	Delete(ctx context.Context, id models.FilterID) error
	// Get returns a single rule
	Get(ctx context.Context, id models.FilterID) (models.StoredRule, error)
	// ListAt returns the rules of one column in insertion order
	ListAt(ctx context.Context, fileID models.FileID, sheet, column int) ([]models.StoredRule, error)
	// ListForSheet returns the rules of every column of a sheet in insertion order
	ListForSheet(ctx context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error)
	Close() error
}
