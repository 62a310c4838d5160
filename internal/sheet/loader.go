// Package sheet loads delimited text files into workbooks.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rebeliceyang/lazysheet/internal/models"
)

// ErrNoSheets is returned for a directory without any delimited files
var ErrNoSheets = errors.New("no sheets found")

var extensions = map[string]rune{
	".csv": ',',
	".tsv": '\t',
	".tab": '\t',
	".txt": ',',
}

// FileID derives the stable identifier of the file at path. The same
// absolute path always yields the same id.
func FileID(path string) (models.FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return models.FileID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()), nil
}

// Load reads path into a workbook. A file is a single sheet; a directory
// becomes one sheet per delimited file, sorted by name. An empty delimiter
// picks one from the file extension.
func Load(path, delimiter string) (*models.Workbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	id, err := FileID(path)
	if err != nil {
		return nil, err
	}

	wb := &models.Workbook{
		FileID: id,
		Path:   path,
		Name:   filepath.Base(path),
	}

	files := []string{path}
	if info.IsDir() {
		files, err = sheetFiles(path)
		if err != nil {
			return nil, err
		}
	}

	for _, f := range files {
		sh, err := loadSheet(f, delimiter)
		if err != nil {
			return nil, err
		}
		wb.Sheets = append(wb.Sheets, sh)
	}
	return wb, nil
}

func sheetFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSheets)
	}
	sort.Strings(files)
	return files, nil
}

func loadSheet(path, delimiter string) (models.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Sheet{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sh, err := Parse(f, delimiterFor(path, delimiter))
	if err != nil {
		return models.Sheet{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	sh.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return sh, nil
}

// Parse reads delimited records; the first record is the header
func Parse(r io.Reader, delim rune) (models.Sheet, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return models.Sheet{}, err
	}

	var sh models.Sheet
	if len(records) == 0 {
		return sh, nil
	}

	sh.Columns = records[0]
	sh.Rows = records[1:]

	// Widen the header when a row is longer than it
	for _, row := range sh.Rows {
		for len(sh.Columns) < len(row) {
			sh.Columns = append(sh.Columns, fmt.Sprintf("column_%d", len(sh.Columns)+1))
		}
	}
	return sh, nil
}

func delimiterFor(path, delimiter string) rune {
	switch delimiter {
	case "":
	case `\t`, "tab":
		return '\t'
	default:
		return []rune(delimiter)[0]
	}
	if d, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return d
	}
	return ','
}
