package schema

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

// NameStyle selects how fresh identifiers are produced.
type NameStyle int

const (
	// NameSequential yields prefix-and-counter names such as t0, c1, i2.
	NameSequential NameStyle = iota
	// NameRandom yields 5 to 10 random ASCII letters that are not keywords.
	NameRandom
)

// String returns the config name of the style.
func (s NameStyle) String() string {
	if s == NameRandom {
		return "random"
	}
	return "sequential"
}

// ParseNameStyle parses a config value. Empty means NameSequential.
func ParseNameStyle(s string) (NameStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return NameSequential, nil
	case "random":
		return NameRandom, nil
	default:
		return NameSequential, errors.Errorf("unknown name style %q", s)
	}
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomName(r *rand.Rand) string {
	for {
		n := 5 + r.Intn(6)
		var sb strings.Builder
		sb.Grow(n)
		for i := 0; i < n; i++ {
			sb.WriteByte(letters[r.Intn(len(letters))])
		}
		name := sb.String()
		if !IsKeyword(name) {
			return name
		}
	}
}

// nextName returns a name that taken rejects. counter is advanced for
// sequential names.
func nextName(style NameStyle, r *rand.Rand, prefix string, counter *int, taken func(string) bool) string {
	for {
		var name string
		if style == NameRandom {
			name = randomName(r)
		} else {
			name = fmt.Sprintf("%s%d", prefix, *counter)
			*counter++
		}
		if !taken(name) {
			return name
		}
	}
}

// IsKeyword reports whether name is an SQLite keyword, ignoring case.
func IsKeyword(name string) bool {
	_, ok := keywords[strings.ToUpper(name)]
	return ok
}

var keywords = func() map[string]struct{} {
	list := []string{
		"ABORT", "ACTION", "ADD", "AFTER", "ALL", "ALTER", "ALWAYS", "ANALYZE",
		"AND", "AS", "ASC", "ATTACH", "AUTOINCREMENT", "BEFORE", "BEGIN",
		"BETWEEN", "BY", "CASCADE", "CASE", "CAST", "CHECK", "COLLATE",
		"COLUMN", "COMMIT", "CONFLICT", "CONSTRAINT", "CREATE", "CROSS",
		"CURRENT", "CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP",
		"DATABASE", "DEFAULT", "DEFERRABLE", "DEFERRED", "DELETE", "DESC",
		"DETACH", "DISTINCT", "DO", "DROP", "EACH", "ELSE", "END", "ESCAPE",
		"EXCEPT", "EXCLUDE", "EXCLUSIVE", "EXISTS", "EXPLAIN", "FAIL", "FILTER",
		"FIRST", "FOLLOWING", "FOR", "FOREIGN", "FROM", "FULL", "GENERATED",
		"GLOB", "GROUP", "GROUPS", "HAVING", "IF", "IGNORE", "IMMEDIATE", "IN",
		"INDEX", "INDEXED", "INITIALLY", "INNER", "INSERT", "INSTEAD",
		"INTERSECT", "INTO", "IS", "ISNULL", "JOIN", "KEY", "LAST", "LEFT",
		"LIKE", "LIMIT", "MATCH", "MATERIALIZED", "NATURAL", "NO", "NOT",
		"NOTHING", "NOTNULL", "NULL", "NULLS", "OF", "OFFSET", "ON", "OR",
		"ORDER", "OTHERS", "OUTER", "OVER", "PARTITION", "PLAN", "PRAGMA",
		"PRECEDING", "PRIMARY", "QUERY", "RAISE", "RANGE", "RECURSIVE",
		"REFERENCES", "REGEXP", "REINDEX", "RELEASE", "RENAME", "REPLACE",
		"RESTRICT", "RETURNING", "RIGHT", "ROLLBACK", "ROW", "ROWS",
		"SAVEPOINT", "SELECT", "SET", "TABLE", "TEMP", "TEMPORARY", "THEN",
		"TIES", "TO", "TRANSACTION", "TRIGGER", "UNBOUNDED", "UNION", "UNIQUE",
		"UPDATE", "USING", "VACUUM", "VALUES", "VIEW", "VIRTUAL", "WHEN",
		"WHERE", "WINDOW", "WITH", "WITHOUT",
	}
	out := make(map[string]struct{}, len(list))
	for _, kw := range list {
		out[kw] = struct{}{}
	}
	return out
}()
