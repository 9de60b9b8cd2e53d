// Package persistence stores subscriptions, payments and their history in
// SQLite or PostgreSQL.
package persistence

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
)

// latestFirst orders a user's subscriptions newest first. Rows created in
// the same instant put the live one first.
const latestFirst = `ORDER BY created_at DESC,
	CASE WHEN status IN ('PENDING', 'ACTIVE') THEN 0 ELSE 1 END, id DESC`

func statusArgs(statuses []domain.Status) []any {
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

// sqliteIn renders "?, ?, ?" for n values.
func sqliteIn(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// postgresIn renders "$first, ..., $first+n-1".
func postgresIn(first, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(first+i)
	}
	return strings.Join(parts, ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
