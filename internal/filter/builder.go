package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rebeliceyang/lazysheet/internal/models"
)

// Predicate reports whether a cell value passes a rule
type Predicate func(cell string) bool

// Builder compiles filter rules into row predicates
type Builder struct{}

// NewBuilder creates a new filter builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Methods returns the matching modes the backend accepts, in selector order
func Methods() []models.Method {
	return []models.Method{
		models.MethodContains,
		models.MethodNotContains,
		models.MethodEquals,
		models.MethodNotEquals,
		models.MethodStartsWith,
		models.MethodEndsWith,
		models.MethodRegex,
	}
}

// IsValidMethod reports whether m is one of Methods()
func IsValidMethod(m models.Method) bool {
	for _, known := range Methods() {
		if known == m {
			return true
		}
	}
	return false
}

// MethodLabel returns a short human label for a method
func MethodLabel(m models.Method) string {
	switch m {
	case models.MethodEquals:
		return "equals"
	case models.MethodNotEquals:
		return "not equals"
	case models.MethodContains:
		return "contains"
	case models.MethodNotContains:
		return "not contains"
	case models.MethodStartsWith:
		return "starts with"
	case models.MethodEndsWith:
		return "ends with"
	case models.MethodRegex:
		return "regex"
	default:
		return string(m)
	}
}

// BuildPredicate compiles a single rule
func (b *Builder) BuildPredicate(rule models.FilterRule) (Predicate, error) {
	input := rule.Input

	switch rule.Method {
	case models.MethodEquals:
		return func(cell string) bool { return cell == input }, nil
	case models.MethodNotEquals:
		return func(cell string) bool { return cell != input }, nil
	case models.MethodContains:
		needle := strings.ToLower(input)
		return func(cell string) bool { return strings.Contains(strings.ToLower(cell), needle) }, nil
	case models.MethodNotContains:
		needle := strings.ToLower(input)
		return func(cell string) bool { return !strings.Contains(strings.ToLower(cell), needle) }, nil
	case models.MethodStartsWith:
		return func(cell string) bool { return strings.HasPrefix(cell, input) }, nil
	case models.MethodEndsWith:
		return func(cell string) bool { return strings.HasSuffix(cell, input) }, nil
	case models.MethodRegex:
		re, err := regexp.Compile(input)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", input, err)
		}
		return re.MatchString, nil
	default:
		return nil, fmt.Errorf("unsupported method: %s", rule.Method)
	}
}

// Apply returns the rows that pass every enabled rule. Rules for columns the
// sheet does not have are ignored; a rule that fails to compile is reported
// and skipped so the remaining rules still apply.
func (b *Builder) Apply(sheet models.Sheet, rules []models.StoredRule) ([][]string, []error) {
	type columnPredicate struct {
		column int
		pass   Predicate
	}

	var preds []columnPredicate
	var errs []error
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.Scope.Column < 0 || r.Scope.Column >= len(sheet.Columns) {
			continue
		}
		p, err := b.BuildPredicate(r.FilterRule)
		if err != nil {
			errs = append(errs, fmt.Errorf("filter %d: %w", r.ID, err))
			continue
		}
		preds = append(preds, columnPredicate{column: r.Scope.Column, pass: p})
	}

	if len(preds) == 0 {
		return sheet.Rows, errs
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		keep := true
		for _, p := range preds {
			cell := ""
			if p.column < len(row) {
				cell = row[p.column]
			}
			if !p.pass(cell) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return rows, errs
}
