package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/rebeliceyang/lazysheet/internal/models"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, json, yaml and yml
func ParseFormat(s string) (Format, error) {
	switch s {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// RuleRecord is a rule as written to an export file
type RuleRecord struct {
	ID         int64  `json:"id" yaml:"id"`
	Sheet      int    `json:"sheet" yaml:"sheet"`
	Column     int    `json:"column" yaml:"column"`
	ColumnName string `json:"column_name,omitempty" yaml:"column_name,omitempty"`
	Method     string `json:"method" yaml:"method"`
	Input      string `json:"input" yaml:"input"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// Records converts rules, naming each column from columns when possible
func Records(rules []models.StoredRule, columns []string) []RuleRecord {
	out := make([]RuleRecord, 0, len(rules))
	for _, r := range rules {
		rec := RuleRecord{
			ID:      int64(r.ID),
			Sheet:   r.Scope.Sheet,
			Column:  r.Scope.Column,
			Method:  string(r.Method),
			Input:   r.Input,
			Enabled: r.Enabled,
		}
		if r.Scope.Column >= 0 && r.Scope.Column < len(columns) {
			rec.ColumnName = columns[r.Scope.Column]
		}
		out = append(out, rec)
	}
	return out
}

// ExportRules writes rules to path in the given format
func ExportRules(rules []RuleRecord, format Format, path string) error {
	switch format {
	case FormatCSV:
		return exportRulesCSV(rules, path)
	case FormatJSON:
		return ExportToJSON(rules, path)
	case FormatYAML:
		return ExportToYAML(rules, path)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func exportRulesCSV(rules []RuleRecord, path string) error {
	header := []string{"ID", "Sheet", "Column", "Column Name", "Method", "Input", "Enabled"}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.Sheet),
			strconv.Itoa(r.Column),
			r.ColumnName,
			r.Method,
			r.Input,
			strconv.FormatBool(r.Enabled),
		})
	}
	return ExportToCSV(header, rows, path)
}

// ExportToCSV writes a header and rows to a CSV file
func ExportToCSV(header []string, rows [][]string, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportToJSON writes v as indented JSON
func ExportToJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

// ExportToYAML writes v as YAML
func ExportToYAML(v any, path string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
