package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize adapts a gendry query to the bind style of the driver behind db.
// gendry emits MySQL style "LIMIT ?,?" which postgres does not accept.
func Finalize(db *sqlx.DB, query string, args []interface{}) (string, []interface{}) {
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		loc := limitRegex.FindStringIndex(query)
		if loc != nil {
			prefix := query[:loc[0]]
			qCount := strings.Count(prefix, "?")
			if qCount+1 < len(args) {
				args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
				query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
			}
		}
	}
	return db.Rebind(query), args
}

// IsConflict reports whether err is a unique constraint violation.
func IsConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
