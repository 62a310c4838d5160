package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS filters (
    filter_id BIGSERIAL PRIMARY KEY,
    method TEXT NOT NULL,
    input TEXT NOT NULL DEFAULT '',
    enabled BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS file_filters (
    file_id TEXT NOT NULL,
    filter_id BIGINT NOT NULL REFERENCES filters(filter_id) ON DELETE CASCADE,
    sheet INTEGER NOT NULL,
    column_no INTEGER NOT NULL,
    UNIQUE (file_id, filter_id)
);

CREATE INDEX IF NOT EXISTS idx_file_filters_scope ON file_filters(file_id, sheet, column_no);
`

const selectRules = `
SELECT f.filter_id, ff.file_id, ff.sheet, ff.column_no, f.method, f.input, f.enabled
FROM filters f
JOIN file_filters ff ON ff.filter_id = f.filter_id`

// Store persists filter rules in PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore connects to dsn and creates the schema when missing
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	return cfg, nil
}

// Add inserts the rule and its file relationship in one transaction
func (s *Store) Add(ctx context.Context, rule models.FilterRule) (models.FilterID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO filters (method, input, enabled) VALUES ($1, $2, $3) RETURNING filter_id`,
		string(rule.Method), rule.Input, rule.Enabled,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to add filter: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO file_filters (file_id, filter_id, sheet, column_no) VALUES ($1, $2, $3, $4)`,
		string(rule.Scope.FileID), id, rule.Scope.Sheet, rule.Scope.Column,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to link filter to file: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return models.FilterID(id), nil
}

// Update replaces the mutable fields of a rule
func (s *Store) Update(ctx context.Context, id models.FilterID, method models.Method, input string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE filters SET method = $1, input = $2, enabled = $3 WHERE filter_id = $4`,
		string(method), input, enabled, int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a rule; its relationship rows cascade
func (s *Store) Delete(ctx context.Context, id models.FilterID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM filters WHERE filter_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get returns a single rule
func (s *Store) Get(ctx context.Context, id models.FilterID) (models.StoredRule, error) {
	row := s.pool.QueryRow(ctx, selectRules+` WHERE f.filter_id = $1`, int64(id))
	r, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoredRule{}, store.ErrNotFound
	}
	return r, err
}

// ListAt returns the rules of one column ordered by id
func (s *Store) ListAt(ctx context.Context, fileID models.FileID, sheet, column int) ([]models.StoredRule, error) {
	rows, err := s.pool.Query(ctx,
		selectRules+` WHERE ff.file_id = $1 AND ff.sheet = $2 AND ff.column_no = $3 ORDER BY f.filter_id`,
		string(fileID), sheet, column,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListForSheet returns the rules of every column of a sheet ordered by id
func (s *Store) ListForSheet(ctx context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error) {
	rows, err := s.pool.Query(ctx,
		selectRules+` WHERE ff.file_id = $1 AND ff.sheet = $2 ORDER BY f.filter_id`,
		string(fileID), sheet,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Close closes the connection pool
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanRule(row pgx.Row) (models.StoredRule, error) {
	var r models.StoredRule
	var id int64
	var fileID, method string

	if err := row.Scan(&id, &fileID, &r.Scope.Sheet, &r.Scope.Column, &method, &r.Input, &r.Enabled); err != nil {
		return models.StoredRule{}, err
	}

	r.ID = models.FilterID(id)
	r.Scope.FileID = models.FileID(fileID)
	r.Method = models.Method(method)
	return r, nil
}

func collect(rows pgx.Rows) ([]models.StoredRule, error) {
	defer rows.Close()

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
