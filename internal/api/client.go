// Package api is the client side of the filter backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rebeliceyang/lazysheet/internal/models"
)

// ErrMalformedResponse is returned when a 2xx body lacks a required key
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is a non-2xx answer from the backend
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// FilterStore is the remote filter collection as seen by the UI
type FilterStore interface {
	GetAt(ctx context.Context, scope models.Scope) ([]models.StoredRule, error)
	GetForSheet(ctx context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error)
	Add(ctx context.Context, rule models.FilterRule) (models.FilterID, error)
	Update(ctx context.Context, id models.FilterID, rule models.FilterRule) error
	Delete(ctx context.Context, id models.FilterID) error
}

// TemplateSource fetches popup layouts by path
type TemplateSource interface {
	Template(ctx context.Context, path string) (string, error)
}

const dialTimeout = 5 * time.Second

// Client talks JSON over HTTP to the filter backend
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ FilterStore    = (*Client)(nil)
	_ TemplateSource = (*Client)(nil)
)

// NewClient creates a client for baseURL. A zero timeout means requests
// never time out.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
	}
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetAt returns the rules of one column in backend order
func (c *Client) GetAt(ctx context.Context, scope models.Scope) ([]models.StoredRule, error) {
	var rules []Rule
	req := AtRequest{FileID: string(scope.FileID), Sheet: scope.Sheet, Column: scope.Column}
	if err := c.post(ctx, PathGetAt, req, &rules); err != nil {
		return nil, errors.Wrap(err, "get filters")
	}

	out := make([]models.StoredRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Stored(scope))
	}
	return out, nil
}

// GetForSheet returns the rules of every column of a sheet
func (c *Client) GetForSheet(ctx context.Context, fileID models.FileID, sheet int) ([]models.StoredRule, error) {
	var rules []Rule
	req := SheetRequest{FileID: string(fileID), Sheet: sheet}
	if err := c.post(ctx, PathGetForSheet, req, &rules); err != nil {
		return nil, errors.Wrap(err, "get sheet filters")
	}

	out := make([]models.StoredRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Stored(models.Scope{FileID: fileID, Sheet: sheet, Column: r.Column}))
	}
	return out, nil
}

// Get returns a single rule
func (c *Client) Get(ctx context.Context, id models.FilterID) (models.StoredRule, error) {
	var r Rule
	if err := c.post(ctx, PathGet, IDRequest{FilterID: int64(id)}, &r); err != nil {
		return models.StoredRule{}, errors.Wrapf(err, "get filter %d", id)
	}
	return r.Stored(models.Scope{}), nil
}

// Add persists a new rule and returns the id the backend assigned
func (c *Client) Add(ctx context.Context, rule models.FilterRule) (models.FilterID, error) {
	req := AddRequest{
		FileID:  string(rule.Scope.FileID),
		Sheet:   rule.Scope.Sheet,
		Column:  rule.Scope.Column,
		Method:  string(rule.Method),
		Input:   rule.Input,
		Enabled: rule.Enabled,
	}

	var resp AddResponse
	if err := c.post(ctx, PathAdd, req, &resp); err != nil {
		return 0, errors.Wrap(err, "add filter")
	}
	if resp.FilterID == nil {
		return 0, errors.Wrap(ErrMalformedResponse, "add filter: missing filterId")
	}
	return models.FilterID(*resp.FilterID), nil
}

// Update replaces method, input and enabled of a persisted rule
func (c *Client) Update(ctx context.Context, id models.FilterID, rule models.FilterRule) error {
	req := UpdateRequest{
		FilterID: int64(id),
		Method:   string(rule.Method),
		Input:    rule.Input,
		Enabled:  rule.Enabled,
	}
	return errors.Wrapf(c.post(ctx, PathUpdate, req, nil), "update filter %d", id)
}

// Delete removes a persisted rule
func (c *Client) Delete(ctx context.Context, id models.FilterID) error {
	return errors.Wrapf(c.post(ctx, PathDelete, IDRequest{FilterID: int64(id)}, nil), "delete filter %d", id)
}

// Template fetches a layout served under /templates/
func (c *Client) Template(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathTemplates+strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		return "", errors.Wrap(err, "create template request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "fetch template %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "read template %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Wrapf(statusError(resp.StatusCode, body), "fetch template %s", path)
	}
	return string(body), nil
}

// Health checks that the backend answers
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return errors.Wrap(err, "create health request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "health check")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Wrap(statusError(resp.StatusCode, body), "health check")
	}
	return nil
}

// post sends body as JSON and decodes a 2xx answer into out when out is set
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "decode %s: %v", path, err)
	}
	return nil
}

func statusError(code int, body []byte) *StatusError {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return &StatusError{StatusCode: code, Message: e.Error}
	}
	return &StatusError{StatusCode: code, Message: strings.TrimSpace(string(body))}
}
