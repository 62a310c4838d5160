package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store persists filter rules in a SQLite database
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	// Create schema
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Add inserts the rule and its file relationship in one transaction
func (s *Store) Add(ctx context.Context, rule models.FilterRule) (models.FilterID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO filters (method, input, enabled) VALUES (?, ?, ?)`,
		string(rule.Method), rule.Input, rule.Enabled,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO file_filters (file_id, filter_id, sheet, column_no) VALUES (?, ?, ?, ?)`,
		string(rule.Scope.FileID), id, rule.Scope.Sheet, rule.Scope.Column,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to link filter to file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return models.FilterID(id), nil
}

// Update replaces the mutable fields of a rule
func (s *Store) Update(ctx context.Context, id models.FilterID, method models.Method, input string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE filters SET method = ?, input = ?, enabled = ? WHERE filter_id = ?`,
		string(method), input, enabled, int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a rule and its relationship rows
func (s *Store) Delete(ctx context.Context, id models.FilterID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_filters WHERE filter_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to unlink filter: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE filter_id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns a single rule
func (s *Store) Get(ctx context.Context, id models.FilterID) (models.StoredRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.filter_id, ff.file_id, ff.sheet, ff.column_no, f.method, f.input, f.enabled
		FROM filters f
		JOIN file_filters ff ON ff.filter_id = f.filter_id
		WHERE f.filter_id = ?`, int64(id))

	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredRule{}, store.ErrNotFound
	}
	return r, err
}

// ListAt returns the rules of one column ordered by id
func (s *Store) ListAt(ctx context.Context, fileID models.FileID, sheet, column int) ([]models.StoredRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.filter_id, ff.file_id, ff.sheet, ff.column_no, f.method, f.input, f.enabled
		FROM filters f
		JOIN file_filters ff ON ff.filter_id = f.filter_id
		WHERE ff.file_id = ? AND ff.sheet = ? AND ff.column_no = ?
		ORDER BY f.filter_id`, string(fileID), sheet, column)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListForSheet returns the rules of every column of a sheet ordered by id
func (s *Store) ListForSheet(ctx context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.filter_id, ff.file_id, ff.sheet, ff.column_no, f.method, f.input, f.enabled
		FROM filters f
		JOIN file_filters ff ON ff.filter_id = f.filter_id
		WHERE ff.file_id = ? AND ff.sheet = ?
		ORDER BY f.filter_id`, string(fileID), sheet)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(sc scanner) (models.StoredRule, error) {
	var r models.StoredRule
	var id int64
	var fileID, method string

	err := sc.Scan(
		&id,
		&fileID,
		&r.Scope.Sheet,
		&r.Scope.Column,
		&method,
		&r.Input,
		&r.Enabled,
	)
	if err != nil {
		return models.StoredRule{}, err
	}

	r.ID = models.FilterID(id)
	r.Scope.FileID = models.FileID(fileID)
	r.Method = models.Method(method)
	return r, nil
}

func collect(rows *sql.Rows) ([]models.StoredRule, error) {
	defer func() { _ = rows.Close() }()

	rules := []models.StoredRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
