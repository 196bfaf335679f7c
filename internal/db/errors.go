package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
)

var sqliteDetail = regexp.MustCompile(`^(.*?)(?:\s*\(\d+\))?$`)

// ErrorCode returns a stable code for a database error: "mysql:<number>" or
// "sqlite:<primary code>".
func ErrorCode(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return fmt.Sprintf("mysql:%d", mysqlErr.Number), true
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return fmt.Sprintf("sqlite:%d", sqliteErr.Code()&0xff), true
	}
	return "", false
}

// ErrorReason buckets an error message by its leading clause, such as
// "no such column" or "syntax error", for stats.
func ErrorReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if m := sqliteDetail.FindStringSubmatch(msg); m != nil {
		msg = m[1]
	}
	msg = strings.TrimPrefix(msg, "SQL logic error: ")
	if strings.HasSuffix(msg, "syntax error") {
		return "syntax error"
	}
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(strings.ToLower(msg))
	if len(msg) > 48 {
		msg = msg[:48]
	}
	return msg
}
