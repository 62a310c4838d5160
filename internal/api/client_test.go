package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path string
	body map[string]any
}

type backend struct {
	mu    sync.Mutex
	calls []recorded
}

func (b *backend) recorded() []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recorded(nil), b.calls...)
}

// newBackend answers every request with the handler registered for its path
// and records what the client sent.
func newBackend(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Client, *backend) {
	t.Helper()
	b := &backend{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{path: r.URL.Path}
		if r.Method == http.MethodPost {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&rec.body))
		}
		b.mu.Lock()
		b.calls = append(b.calls, rec)
		b.mu.Unlock()

		h, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL+"/", 0), b
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var scope = models.Scope{FileID: "file-1", Sheet: 0, Column: 2}

func TestClient_Add(t *testing.T) {
	c, calls := newBackend(t, map[string]func(http.ResponseWriter){
		PathAdd: reply(200, `{"message":"ok","filterId":42}`),
	})

	id, err := c.Add(context.Background(), models.FilterRule{
		Scope:   scope,
		Method:  models.MethodContains,
		Input:   "foo",
		Enabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.FilterID(42), id)

	require.Len(t, calls.recorded(), 1)
	body := calls.recorded()[0].body
	assert.Equal(t, "file-1", body["fileId"])
	assert.Equal(t, float64(0), body["sheet"])
	assert.Equal(t, float64(2), body["column"])
	assert.Equal(t, "contains", body["method"])
	assert.Equal(t, "foo", body["input"])
	assert.Equal(t, true, body["enabled"])
}

func TestClient_AddMissingID(t *testing.T) {
	c, _ := newBackend(t, map[string]func(http.ResponseWriter){
		PathAdd: reply(200, `{"message":"ok"}`),
	})

	_, err := c.Add(context.Background(), models.FilterRule{Scope: scope, Method: models.MethodEquals})
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestClient_AddIDZeroIsValid(t *testing.T) {
	c, _ := newBackend(t, map[string]func(http.ResponseWriter){
		PathAdd: reply(200, `{"filterId":0}`),
	})

	id, err := c.Add(context.Background(), models.FilterRule{Scope: scope, Method: models.MethodEquals})
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestClient_Update(t *testing.T) {
	c, calls := newBackend(t, map[string]func(http.ResponseWriter){
		PathUpdate: reply(200, `not even json`),
	})

	err := c.Update(context.Background(), 7, models.FilterRule{Method: models.MethodEquals, Input: "x", Enabled: false})
	require.NoError(t, err)

	body := calls.recorded()[0].body
	assert.Equal(t, float64(7), body["filterId"])
	assert.Equal(t, false, body["enabled"])
	assert.NotContains(t, body, "fileId")
}

func TestClient_Delete(t *testing.T) {
	c, calls := newBackend(t, map[string]func(http.ResponseWriter){
		PathDelete: reply(200, ``),
	})

	require.NoError(t, c.Delete(context.Background(), 7))
	assert.Equal(t, map[string]any{"filterId": float64(7)}, calls.recorded()[0].body)
}

func TestClient_GetAt(t *testing.T) {
	c, calls := newBackend(t, map[string]func(http.ResponseWriter){
		PathGetAt: reply(200, `[{"id":3,"method":"equals","input":"a","enabled":true},{"id":9,"method":"regex","input":"b","enabled":false}]`),
	})

	rules, err := c.GetAt(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.FilterID(3), rules[0].ID)
	assert.Equal(t, models.FilterID(9), rules[1].ID)
	assert.Equal(t, scope, rules[1].Scope)
	assert.False(t, rules[1].Enabled)

	assert.Equal(t, PathGetAt, calls.recorded()[0].path)
	assert.Equal(t, float64(2), calls.recorded()[0].body["column"])
}

func TestClient_GetForSheet(t *testing.T) {
	c, _ := newBackend(t, map[string]func(http.ResponseWriter){
		PathGetForSheet: reply(200, `[{"id":1,"column":4,"method":"equals","input":"a","enabled":true}]`),
	})

	rules, err := c.GetForSheet(context.Background(), "file-1", 1)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.Scope{FileID: "file-1", Sheet: 1, Column: 4}, rules[0].Scope)
}

func TestClient_StatusError(t *testing.T) {
	c, _ := newBackend(t, map[string]func(http.ResponseWriter){
		PathGetAt: reply(400, `{"error":"Missing one or more required keys"}`),
	})

	_, err := c.GetAt(context.Background(), scope)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 400, se.StatusCode)
	assert.Equal(t, "Missing one or more required keys", se.Message)
}

func TestClient_Template(t *testing.T) {
	c, calls := newBackend(t, map[string]func(http.ResponseWriter){
		"/templates/filter/filter_list.tmpl": func(w http.ResponseWriter) { _, _ = w.Write([]byte("{{.Title}}")) },
	})

	text, err := c.Template(context.Background(), "filter/filter_list.tmpl")
	require.NoError(t, err)
	assert.Equal(t, "{{.Title}}", text)
	assert.Equal(t, "/templates/filter/filter_list.tmpl", calls.recorded()[0].path)

	_, err = c.Template(context.Background(), "filter/nope.tmpl")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestClient_TransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 0)
	_, err := c.GetAt(context.Background(), scope)
	assert.Error(t, err)
}
