// Package console is the live-data tool surface: a safety perimeter of
// validators, rollback-only transactions, confirmation, and audit around
// tools that read the running application's database.
package console

import (
	"regexp"
	"strings"

	"github.com/codescope/codescope/infrastructure/toolserver"
)

// forbiddenKeywords are rejected anywhere in a statement.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER",
	"TRUNCATE", "CREATE", "GRANT", "REVOKE",
}

// bodyForbiddenKeywords are rejected in the statement body even though they
// can occur in legitimate read dialects elsewhere.
var bodyForbiddenKeywords = []string{"UNION", "INTO", "COPY"}

// dangerousFunctions can read files, sleep, or exfiltrate regardless of the
// statement verb.
var dangerousFunctions = []string{
	"pg_sleep", "lo_import", "lo_export", "pg_read_file",
	"pg_write_file", "load_file", "sleep", "benchmark",
}

var writableCTEPattern = regexp.MustCompile(`(?is)\bAS\s*\(\s*(DELETE|UPDATE|INSERT)\b`)

// SqlValidator decides whether a free-form SQL statement is safe to run
// read-only. Every check runs twice: once on a copy with string literals
// and comments stripped, and once on the raw input so nothing can hide
// inside a literal or comment.
type SqlValidator struct{}

// NewSqlValidator creates a SqlValidator.
func NewSqlValidator() *SqlValidator {
	return &SqlValidator{}
}

// Validate returns nil when sql is acceptable, or a sql_rejected error
// naming the first rule it broke.
func (v *SqlValidator) Validate(sql string) error {
	stripped := stripLiteralsAndComments(sql)

	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		return toolserver.NewError(toolserver.KindSQLRejected, "Rejected: empty statement")
	}

	if strings.Contains(strings.TrimRight(trimmed, "; \t\n"), ";") {
		return toolserver.NewError(toolserver.KindSQLRejected, "Rejected: multiple statements are not allowed")
	}

	first := firstToken(trimmed)
	switch first {
	case "SELECT", "WITH", "EXPLAIN":
	default:
		return toolserver.Errorf(toolserver.KindSQLRejected,
			"Rejected: statement must start with SELECT, WITH, or EXPLAIN (got %s)", first)
	}

	for _, text := range []string{stripped, sql} {
		if err := v.checkBody(text); err != nil {
			return err
		}
	}
	return nil
}

func (v *SqlValidator) checkBody(text string) error {
	upper := strings.ToUpper(text)
	for _, kw := range forbiddenKeywords {
		if containsWord(upper, kw) {
			return toolserver.Errorf(toolserver.KindSQLRejected, "Rejected: forbidden keyword %s", kw)
		}
	}
	for _, kw := range bodyForbiddenKeywords {
		if containsWord(upper, kw) {
			return toolserver.Errorf(toolserver.KindSQLRejected, "Rejected: forbidden keyword %s", kw)
		}
	}
	if writableCTEPattern.MatchString(text) {
		return toolserver.NewError(toolserver.KindSQLRejected, "Rejected: writable CTE")
	}
	lower := strings.ToLower(text)
	for _, fn := range dangerousFunctions {
		if containsWord(lower, fn) {
			return toolserver.Errorf(toolserver.KindSQLRejected, "Rejected: dangerous function %s", fn)
		}
	}
	return nil
}

// firstToken returns the first word of the statement, uppercased.
func firstToken(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// containsWord reports whether word occurs in text delimited by non-word
// characters, so "created_at" does not trip on "CREATE".
func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// stripLiteralsAndComments removes single/double-quoted string literals,
// line comments, and block comments, leaving everything else untouched.
func stripLiteralsAndComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			quote := c
			i++
			for i < len(sql) {
				if sql[i] == quote {
					// Doubled quote is an escaped quote inside the literal.
					if i+1 < len(sql) && sql[i+1] == quote {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			b.WriteByte(' ')
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < len(sql) {
				i += 2
			} else {
				i = len(sql)
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
