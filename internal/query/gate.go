// Package query validates and executes generated SQL against the
// transactional store.
//
// The statement body is the output of a language model, so the usual
// parameter-binding discipline does not apply: the whole query is the
// untrusted input. Mitigation is the safety gate — a policy layer that
// admits only single, read-only, bounded retrieval statements — plus a
// hard timeout and row cap at execution time.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Gate is the policy layer rejecting unsafe or unbounded statements.
// A Gate is immutable and safe for concurrent use.
type Gate struct {
	maxRows int
}

// NewGate creates a safety gate that bounds unbounded statements to
// maxRows.
func NewGate(maxRows int) *Gate {
	return &Gate{maxRows: maxRows}
}

// forbiddenVerbs are keywords that disqualify a statement outright.
// Data mutation, schema mutation, session state, and locking forms are
// all rejected; the pipeline only ever reads.
var forbiddenVerbs = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "merge": {},
	"drop": {}, "alter": {}, "create": {}, "truncate": {},
	"grant": {}, "revoke": {}, "copy": {}, "call": {}, "do": {},
	"vacuum": {}, "analyze": {}, "reindex": {}, "cluster": {},
	"refresh": {}, "listen": {}, "notify": {}, "unlisten": {},
	"set": {}, "reset": {}, "lock": {}, "share": {},
	"prepare": {}, "execute": {}, "deallocate": {}, "declare": {},
	"into": {}, // blocks SELECT INTO
}

var (
	limitPattern = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	wordPattern  = regexp.MustCompile(`[a-z_]+`)
)

// Check validates a generated statement and returns the form to execute.
// If the statement carries no explicit row limit, one is injected rather
// than trusting the model. Any violation returns *UnsafeStatementError.
func (g *Gate) Check(statement string) (string, error) {
	stmt := strings.TrimSpace(statement)
	stmt = strings.TrimSuffix(stmt, ";")
	stmt = strings.TrimSpace(stmt)

	if stmt == "" {
		return "", &UnsafeStatementError{Reason: "empty statement"}
	}

	stripped, err := stripLiterals(stmt)
	if err != nil {
		return "", err
	}

	// Statement-separator smuggling: anything after the first statement
	// is rejected, not silently dropped.
	if strings.Contains(stripped, ";") {
		return "", &UnsafeStatementError{Reason: "multiple statements in one submission"}
	}

	// Comments can hide a second statement from naive scanners.
	if strings.Contains(stripped, "--") || strings.Contains(stripped, "/*") {
		return "", &UnsafeStatementError{Reason: "comments are not allowed in generated statements"}
	}

	lower := strings.ToLower(stripped)
	first := firstWord(lower)
	if first != "select" && first != "with" {
		return "", &UnsafeStatementError{Reason: fmt.Sprintf("statement must be a read-only SELECT, got %q", first)}
	}

	for _, word := range wordPattern.FindAllString(lower, -1) {
		if _, bad := forbiddenVerbs[word]; bad {
			return "", &UnsafeStatementError{Reason: fmt.Sprintf("forbidden keyword %q", word)}
		}
	}

	// Bound the result size. The executor enforces its own hard cap
	// independently; this keeps the work off the server too.
	if !limitPattern.MatchString(stripped) {
		stmt = fmt.Sprintf("%s LIMIT %d", stmt, g.maxRows)
	}

	return stmt, nil
}

// stripLiterals blanks out quoted string bodies so separator and keyword
// scanning cannot be fooled by literal content. Unterminated quotes are
// rejected.
func stripLiterals(stmt string) (string, error) {
	var b strings.Builder
	b.Grow(len(stmt))

	inSingle := false
	inDouble := false
	for i := 0; i < len(stmt); i++ {
		ch := stmt[i]
		switch {
		case inSingle:
			if ch == '\'' {
				// '' is an escaped quote inside the literal.
				if i+1 < len(stmt) && stmt[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
				b.WriteByte(ch)
			}
		case inDouble:
			if ch == '"' {
				inDouble = false
				b.WriteByte(ch)
			}
		case ch == '\'':
			inSingle = true
			b.WriteByte(ch)
		case ch == '"':
			inDouble = true
			b.WriteByte(ch)
		case ch == '$':
			// Dollar-quoted strings would defeat the scanner entirely;
			// generated retrieval queries never need them.
			if i+1 < len(stmt) && (stmt[i+1] == '$' || isTagByte(stmt[i+1])) {
				return "", &UnsafeStatementError{Reason: "dollar-quoted strings are not allowed"}
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}

	if inSingle || inDouble {
		return "", &UnsafeStatementError{Reason: "unterminated string literal"}
	}
	return b.String(), nil
}

func isTagByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "(")
}
