package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/config"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := httptest.NewServer(New(st).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_MissingKeys(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path string
		body string
	}{
		{api.PathAdd, `{"fileId":"f","sheet":0,"column":1,"method":"equals","input":"x"}`},
		{api.PathUpdate, `{"filterId":1,"method":"equals","input":"x"}`},
		{api.PathDelete, `{}`},
		{api.PathGet, `{"id":1}`},
		{api.PathGetAt, `{"fileId":"f","sheet":0}`},
		{api.PathGetForSheet, `{"sheet":0}`},
		{api.PathGetAt, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := post(t, srv, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, `{"error":"Missing one or more required keys"}`, body)
		})
	}
}

func TestServer_InvalidMethod(t *testing.T) {
	srv := newTestServer(t)

	status, body := post(t, srv, api.PathAdd, `{"fileId":"f","sheet":0,"column":1,"method":"sounds_like","input":"x","enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Invalid filter method")
}

func TestServer_AddThenListInInsertionOrder(t *testing.T) {
	srv := newTestServer(t)

	var ids []int64
	for _, input := range []string{"first", "second"} {
		status, body := post(t, srv, api.PathAdd,
			`{"fileId":"f","sheet":0,"column":1,"method":"contains","input":"`+input+`","enabled":true}`)
		require.Equal(t, http.StatusOK, status, body)

		var resp api.AddResponse
		require.NoError(t, json.Unmarshal([]byte(body), &resp))
		require.NotNil(t, resp.FilterID)
		ids = append(ids, *resp.FilterID)
	}

	status, body := post(t, srv, api.PathGetAt, `{"fileId":"f","sheet":0,"column":1}`)
	require.Equal(t, http.StatusOK, status)

	var rules []api.Rule
	require.NoError(t, json.Unmarshal([]byte(body), &rules))
	require.Len(t, rules, 2)
	assert.Equal(t, ids[0], rules[0].ID)
	assert.Equal(t, "first", rules[0].Input)
	assert.Equal(t, ids[1], rules[1].ID)

	status, body = post(t, srv, api.PathGetAt, `{"fileId":"f","sheet":0,"column":9}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestServer_UpdateGetDelete(t *testing.T) {
	srv := newTestServer(t)

	_, body := post(t, srv, api.PathAdd, `{"fileId":"f","sheet":2,"column":3,"method":"equals","input":"a","enabled":true}`)
	var added api.AddResponse
	require.NoError(t, json.Unmarshal([]byte(body), &added))
	id := *added.FilterID

	status, _ := post(t, srv, api.PathUpdate, `{"filterId":`+itoa(id)+`,"method":"regex","input":"^a","enabled":false}`)
	require.Equal(t, http.StatusOK, status)

	status, body = post(t, srv, api.PathGet, `{"filterId":`+itoa(id)+`}`)
	require.Equal(t, http.StatusOK, status)
	var got api.Rule
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, api.Rule{ID: id, FileID: "f", Sheet: 2, Column: 3, Method: "regex", Input: "^a", Enabled: false}, got)

	status, body = post(t, srv, api.PathGetForSheet, `{"fileId":"f","sheet":2}`)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"column":3`)

	status, _ = post(t, srv, api.PathDelete, `{"filterId":`+itoa(id)+`}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = post(t, srv, api.PathGet, `{"filterId":`+itoa(id)+`}`)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = post(t, srv, api.PathUpdate, `{"filterId":`+itoa(id)+`,"method":"equals","input":"","enabled":true}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Templates(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/templates/filter/filter_item.tmpl")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "{{.Toggle}}")

	resp2, err := http.Get(srv.URL + "/templates/filter/missing.tmpl")
	require.NoError(t, err)
	_ = resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServer_WithClient(t *testing.T) {
	srv := newTestServer(t)
	c := api.NewClient(srv.URL, 0)
	ctx := context.Background()
	scope := models.Scope{FileID: "file", Sheet: 0, Column: 0}

	require.NoError(t, c.Health(ctx))

	id, err := c.Add(ctx, models.FilterRule{Scope: scope, Method: models.MethodEquals, Input: "x", Enabled: true})
	require.NoError(t, err)

	rules, err := c.GetAt(ctx, scope)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)

	text, err := c.Template(ctx, "filter/filter_list.tmpl")
	require.NoError(t, err)
	assert.Contains(t, text, "{{.Title}}")
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(st).Serve(ctx, ln) }()

	c := api.NewClient("http://"+ln.Addr().String(), time.Second)
	require.Eventually(t, func() bool { return c.Health(context.Background()) == nil }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestOpenStore(t *testing.T) {
	st, err := OpenStore(context.Background(), config.StoreConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, st.Close())

	_, err = OpenStore(context.Background(), config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
