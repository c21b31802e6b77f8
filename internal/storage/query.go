package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTable is the table documents are stored in.
const DefaultTable = "documents"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateTable rejects table names that cannot be safely interpolated into SQL.
func ValidateTable(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Columns lists the selected columns in scan order.
const Columns = "id, document_title, document_type, year, quarter, pdf_url"

// BuildReadQuery renders the filtered SELECT for a backend. placeholder
// returns the bind marker for the n-th (1-based) argument.
func BuildReadQuery(table string, f Filter, placeholder func(n int) string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = %s", column, placeholder(len(args))))
	}
	if f.Type != nil {
		add("document_type", string(*f.Type))
	}
	if f.Year != nil {
		add("year", *f.Year)
	}
	if f.Quarter != nil {
		add("quarter", *f.Quarter)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", Columns, table)
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}
	args = append(args, f.EffectiveLimit())
	fmt.Fprintf(&sb, " LIMIT %s", placeholder(len(args)))
	return sb.String(), args
}

// DollarPlaceholder renders Postgres-style bind markers.
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// QuestionPlaceholder renders SQLite-style bind markers.
func QuestionPlaceholder(int) string {
	return "?"
}
