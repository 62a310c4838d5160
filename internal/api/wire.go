package api

import "github.com/rebeliceyang/lazysheet/internal/models"

// Rule is the JSON shape of a stored rule on the wire
type Rule struct {
	ID      int64  `json:"id"`
	FileID  string `json:"fileId,omitempty"`
	Sheet   int    `json:"sheet"`
	Column  int    `json:"column"`
	Method  string `json:"method"`
	Input   string `json:"input"`
	Enabled bool   `json:"enabled"`
}

// FromStored converts a stored rule to its wire shape
func FromStored(r models.StoredRule) Rule {
	return Rule{
		ID:      int64(r.ID),
		FileID:  string(r.Scope.FileID),
		Sheet:   r.Scope.Sheet,
		Column:  r.Scope.Column,
		Method:  string(r.Method),
		Input:   r.Input,
		Enabled: r.Enabled,
	}
}

// Stored converts the wire shape back. Responses that omit the scope fields
// get them from fallback.
func (r Rule) Stored(fallback models.Scope) models.StoredRule {
	scope := fallback
	if r.FileID != "" {
		scope = models.Scope{FileID: models.FileID(r.FileID), Sheet: r.Sheet, Column: r.Column}
	}
	return models.StoredRule{
		ID: models.FilterID(r.ID),
		FilterRule: models.FilterRule{
			Scope:   scope,
			Method:  models.Method(r.Method),
			Input:   r.Input,
			Enabled: r.Enabled,
		},
	}
}

// AddRequest is the body of /filters/add
type AddRequest struct {
	FileID  string `json:"fileId"`
	Sheet   int    `json:"sheet"`
	Column  int    `json:"column"`
	Method  string `json:"method"`
	Input   string `json:"input"`
	Enabled bool   `json:"enabled"`
}

// AddResponse is the body returned by /filters/add. FilterID is a pointer so
// a response without the key can be told apart from id 0.
type AddResponse struct {
	Message  string `json:"message"`
	FilterID *int64 `json:"filterId"`
}

// UpdateRequest is the body of /filters/update
type UpdateRequest struct {
	FilterID int64  `json:"filterId"`
	Method   string `json:"method"`
	Input    string `json:"input"`
	Enabled  bool   `json:"enabled"`
}

// IDRequest is the body of /filters/delete and /filters/get
type IDRequest struct {
	FilterID int64 `json:"filterId"`
}

// AtRequest is the body of /filters/get/at
type AtRequest struct {
	FileID string `json:"fileId"`
	Sheet  int    `json:"sheet"`
	Column int    `json:"column"`
}

// SheetRequest is the body of /filters/get/for_sheet
type SheetRequest struct {
	FileID string `json:"fileId"`
	Sheet  int    `json:"sheet"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the body of successful mutations
type MessageResponse struct {
	Message string `json:"message"`
}

const (
	PathAdd         = "/filters/add"
	PathUpdate      = "/filters/update"
	PathDelete      = "/filters/delete"
	PathGet         = "/filters/get"
	PathGetAt       = "/filters/get/at"
	PathGetForSheet = "/filters/get/for_sheet"
	PathTemplates   = "/templates/"
	PathHealth      = "/healthz"
)
