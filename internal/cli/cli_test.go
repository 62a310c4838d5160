package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazysheet/internal/export"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/sheet"
	"github.com/rebeliceyang/lazysheet/internal/store/sqlite"
)

type fixture struct {
	dir     string
	config  string
	csv     string
	storeDB string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		config:  filepath.Join(dir, "config.yaml"),
		csv:     filepath.Join(dir, "people.csv"),
		storeDB: filepath.Join(dir, "filters.db"),
	}

	cfg := "store:\n  driver: sqlite\n  path: " + f.storeDB + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(f.csv, []byte("name,city\nAlice,Oslo\nBob,Bergen\n"), 0644))
	return f
}

func (f fixture) seed(t *testing.T, rules ...models.FilterRule) {
	t.Helper()
	st, err := sqlite.NewStore(f.storeDB)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	for _, r := range rules {
		_, err := st.Add(context.Background(), r)
		require.NoError(t, err)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRulesExport_JSON(t *testing.T) {
	f := newFixture(t)
	fileID, err := sheet.FileID(f.csv)
	require.NoError(t, err)

	f.seed(t,
		models.FilterRule{Scope: models.Scope{FileID: fileID, Sheet: 0, Column: 1}, Method: models.MethodEquals, Input: "Oslo", Enabled: true},
		models.FilterRule{Scope: models.Scope{FileID: fileID, Sheet: 0, Column: 0}, Method: models.MethodRegex, Input: "^B", Enabled: false},
		models.FilterRule{Scope: models.Scope{FileID: "another-file", Sheet: 0, Column: 0}, Method: models.MethodEquals, Input: "x", Enabled: true},
	)

	out := filepath.Join(f.dir, "rules.json")
	stdout, err := run(t, "--config", f.config, "rules", "export", f.csv, "--format", "json", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 2 rules")

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var recs []export.RuleRecord
	require.NoError(t, json.Unmarshal(data, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "city", recs[0].ColumnName)
	assert.Equal(t, "Oslo", recs[0].Input)
	assert.Equal(t, "name", recs[1].ColumnName)
	assert.False(t, recs[1].Enabled)
}

func TestRulesExport_Errors(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "rules.out")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"--config", f.config, "rules", "export", f.csv, "--format", "xml", "--out", out}},
		{"missing out", []string{"--config", f.config, "rules", "export", f.csv}},
		{"missing sheet", []string{"--config", f.config, "rules", "export", f.csv, "--sheet", "3", "--out", out}},
		{"missing file", []string{"--config", f.config, "rules", "export", filepath.Join(f.dir, "nope.csv"), "--out", out}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_LogLevelFlag(t *testing.T) {
	f := newFixture(t)
	o := &rootOptions{configFile: f.config, logLevel: "debug"}

	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, f.storeDB, cfg.Store.Path)
}

func TestViewCmd_RequiresFile(t *testing.T) {
	_, err := run(t, "view")
	assert.Error(t, err)
}

func TestStartEmbeddedBackend(t *testing.T) {
	f := newFixture(t)
	o := &rootOptions{configFile: f.config}
	cfg, err := o.loadConfig()
	require.NoError(t, err)

	url, stop, err := startEmbeddedBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, url, "http://127.0.0.1:")
	stop()
}
