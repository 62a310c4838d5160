// Package templates holds the layouts of the filter popup. The backend serves
// them under /templates/ and the client keeps the embedded copy as fallback.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
)

const (
	FilterList = "filter/filter_list.tmpl"
	FilterItem = "filter/filter_item.tmpl"
)

//go:embed filter/*.tmpl
var files embed.FS

// FS returns the embedded template tree
func FS() fs.FS {
	return files
}

// Read returns the raw text of an embedded template
func Read(name string) (string, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return string(data), nil
}

// Parse compiles template text. Layout templates trim the trailing newline so
// they compose into lipgloss blocks cleanly.
func Parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(strings.TrimRight(text, "\n"))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

// Builtin returns the compiled embedded copy of name. It panics if the
// embedded file is missing, which only happens on a broken build.
func Builtin(name string) *template.Template {
	text, err := Read(name)
	if err != nil {
		panic(err)
	}
	return template.Must(Parse(name, text))
}

// Render executes t with data
func Render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
