package models

// FilterID is the backend-assigned identifier of a persisted filter rule
type FilterID int64

// FileID identifies an opened file
type FileID string

// Method is the matching mode of a filter rule. The client treats it as an
// opaque string; the backend validates it.
type Method string

const (
	MethodEquals      Method = "equals"
	MethodNotEquals   Method = "not_equals"
	MethodContains    Method = "contains"
	MethodNotContains Method = "not_contains"
	MethodStartsWith  Method = "starts_with"
	MethodEndsWith    Method = "ends_with"
	MethodRegex       Method = "regex"
)

// Scope identifies the column of a sheet a rule applies to
type Scope struct {
	FileID FileID
	Sheet  int
	Column int
}

// FilterRule is a predicate scoped to one column of one sheet of one file
type FilterRule struct {
	Scope   Scope
	Method  Method
	Input   string
	Enabled bool
}

// StoredRule is a rule as returned by the backend
type StoredRule struct {
	ID FilterID
	FilterRule
}

// RuleState is either Unpersisted or Persisted
type RuleState interface {
	Rule() FilterRule
	isRuleState()
}

// Unpersisted is a rule the backend has never seen. Submitting it is an add.
type Unpersisted struct {
	Pending FilterRule
}

// Persisted is a rule with a backend id. Submitting it is an update.
type Persisted struct {
	ID      FilterID
	Current FilterRule
}

func (u Unpersisted) Rule() FilterRule { return u.Pending }
func (p Persisted) Rule() FilterRule   { return p.Current }

func (Unpersisted) isRuleState() {}
func (Persisted) isRuleState()   {}

// PersistedID returns the id of a persisted state
func PersistedID(s RuleState) (FilterID, bool) {
	if p, ok := s.(Persisted); ok {
		return p.ID, true
	}
	return 0, false
}
