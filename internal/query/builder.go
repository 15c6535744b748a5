// Package query builds the single SELECT statement issued against a source
// view and screens the operator supplied filter clause.
//
// The screening is a keyword scan, not a SQL parser. It can reject a harmless
// clause that mentions a blocked keyword inside a string literal, and a
// determined author can get past it. The source connection must still use a
// read-only role.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	leadingWhere = regexp.MustCompile(`(?i)^\s*WHERE\b\s*`)
	blocked      = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE)(\s|;|$)`)
	operators    = regexp.MustCompile(`(?i)(=|<>|!=|<|>|\b(LIKE|ILIKE|IN|IS|BETWEEN|AND|OR|NOT|EXISTS)\b)`)
	quoted       = regexp.MustCompile(`'[^']*'`)
	bareDate     = regexp.MustCompile(`\b\d{2}[/-]\d{2}[/-]\d{4}\b`)
	identifier   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_$]*|"[^"]+")(\.([A-Za-z_][A-Za-z0-9_$]*|"[^"]+"))?$`)
)

const (
	WarningNoOperator   = "filter clause contains no comparison or logical operator"
	WarningUnquotedDate = "filter clause appears to contain an unquoted DD/MM/YYYY or DD-MM-YYYY date"
)

type UnsafeFilterError struct {
	Keyword string
	Clause  string
}

func (e *UnsafeFilterError) Error() string {
	return fmt.Sprintf("unsafe filter clause: keyword %s is not allowed", e.Keyword)
}

type InvalidViewError struct {
	View string
}

func (e *InvalidViewError) Error() string {
	return fmt.Sprintf("invalid source view name %q", e.View)
}

type Query struct {
	SQL      string
	Warnings []string
}

// Build returns SELECT * FROM view with the filter appended as WHERE when
// present. A leading WHERE in filter is tolerated.
func Build(view, filter string) (*Query, error) {
	view = strings.TrimSpace(view)
	if !identifier.MatchString(view) {
		return nil, &InvalidViewError{View: view}
	}

	clause := strings.TrimSpace(leadingWhere.ReplaceAllString(strings.TrimSpace(filter), ""))
	if clause == "" {
		return &Query{SQL: "SELECT * FROM " + view}, nil
	}

	if m := blocked.FindStringSubmatch(clause); m != nil {
		return nil, &UnsafeFilterError{Keyword: strings.ToUpper(m[1]), Clause: clause}
	}

	return &Query{
		SQL:      "SELECT * FROM " + view + " WHERE " + clause,
		Warnings: Inspect(clause),
	}, nil
}

// Inspect reports likely authoring mistakes in a filter clause.
func Inspect(clause string) []string {
	var warnings []string
	if !operators.MatchString(clause) {
		warnings = append(warnings, WarningNoOperator)
	}
	if bareDate.MatchString(quoted.ReplaceAllString(clause, "''")) {
		warnings = append(warnings, WarningUnquotedDate)
	}
	return warnings
}
