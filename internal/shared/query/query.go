// Package query holds the listing conventions shared by every repository:
// soft-delete scope, paging, sort order and a positional WHERE builder.
package query

import (
	"fmt"
	"strings"
)

// Scope selects records by soft-delete state.
type Scope string

const (
	// ScopeActive returns records whose deleted_at is unset. It is the default.
	ScopeActive Scope = "active"
	// ScopeAll ignores deleted_at.
	ScopeAll Scope = "all"
	// ScopeDeleted returns soft-deleted records only.
	ScopeDeleted Scope = "deleted"
)

// ParseScope maps user input to a Scope. Unknown values yield ScopeActive.
func ParseScope(raw string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeAll:
		return ScopeAll
	case ScopeDeleted:
		return ScopeDeleted
	default:
		return ScopeActive
	}
}

// Includes reports whether a record with the given deleted state is in scope.
func (s Scope) Includes(deleted bool) bool {
	switch s {
	case ScopeAll:
		return true
	case ScopeDeleted:
		return deleted
	default:
		return !deleted
	}
}

// Predicate returns the SQL condition for column, or "" for ScopeAll.
func (s Scope) Predicate(column string) string {
	switch s {
	case ScopeAll:
		return ""
	case ScopeDeleted:
		return column + " IS NOT NULL"
	default:
		return column + " IS NULL"
	}
}

// SortOrder is the direction listings are sorted by updated_at.
type SortOrder string

const (
	SortDesc SortOrder = "DESC"
	SortAsc  SortOrder = "ASC"
)

// ParseSortOrder defaults to SortDesc.
func ParseSortOrder(raw string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(raw), "asc") {
		return SortAsc
	}
	return SortDesc
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is a normalized page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page and limit to sane values.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of records skipped before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages rounds total/limit up.
func (p Page) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// Slice returns the bounds of this page within n items.
func (p Page) Slice(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

// Where accumulates AND-ed conditions with $n placeholders.
type Where struct {
	conds []string
	args  []any
}

// Add appends a condition. Each "?" in cond is replaced by the next $n.
func (w *Where) Add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

// Raw appends a condition without arguments. Empty conditions are skipped.
func (w *Where) Raw(cond string) {
	if cond != "" {
		w.conds = append(w.conds, cond)
	}
}

// SQL renders " WHERE a AND b", or "" when there are no conditions.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (w *Where) Args() []any {
	return w.args
}

// Next returns the placeholder the next argument would take.
func (w *Where) Next() string {
	return fmt.Sprintf("$%d", len(w.args)+1)
}

// Projection resolves requested field names against a whitelist. It returns
// the selected fields in request order, or defaults when none are requested.
// Unknown names are reported as an error.
func Projection(requested, allowed, defaults []string) ([]string, error) {
	known := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		known[f] = struct{}{}
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	for _, raw := range requested {
		f := strings.TrimSpace(raw)
		if f == "" {
			continue
		}
		if _, ok := known[f]; !ok {
			return nil, fmt.Errorf("unknown field %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return append([]string(nil), defaults...), nil
	}
	return out, nil
}

// SplitList splits a comma separated query value.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
