package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UnsafeStatementError reports a generated statement rejected by the
// safety gate before reaching the store.
type UnsafeStatementError struct {
	Reason string
}

func (e *UnsafeStatementError) Error() string {
	return "unsafe statement: " + e.Reason
}

// ExecKind classifies an execution failure.
type ExecKind string

const (
	// KindTimeout means the statement exceeded the execution deadline.
	KindTimeout ExecKind = "timeout"

	// KindInvalidStatement means the store rejected the statement as
	// syntactically or semantically invalid. Expected to happen
	// occasionally since the generator is probabilistic.
	KindInvalidStatement ExecKind = "invalid_statement"

	// KindStoreUnavailable means the transactional store could not be
	// reached or refused the connection. Fatal for the current request.
	KindStoreUnavailable ExecKind = "store_unavailable"
)

// ExecError is a typed execution failure from the transactional store.
type ExecError struct {
	Kind   ExecKind
	Detail string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("query execution failed (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("query execution failed (%s)", e.Kind)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Retryable reports whether a single regeneration attempt makes sense:
// the generator may fix an invalid statement, and a timeout may succeed
// with a narrower query. Store unavailability is never retried.
func (e *ExecError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindInvalidStatement
}

// classifyExecError converts a pgx/context error into a typed ExecError.
func classifyExecError(err error) *ExecError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecError{Kind: KindTimeout, Detail: "statement exceeded execution deadline", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57014 is query_canceled: the server-side face of our deadline.
		if pgErr.Code == "57014" {
			return &ExecError{Kind: KindTimeout, Detail: pgErr.Message, Err: err}
		}
		// Connection (08), resource (53), operator intervention (57),
		// system (58) and internal (XX) classes mean the store itself is
		// in trouble, not the statement.
		class := pgErr.Code
		if len(class) >= 2 {
			class = class[:2]
		}
		switch class {
		case "08", "53", "57", "58", "XX":
			return &ExecError{Kind: KindStoreUnavailable, Detail: pgErr.Message, Err: err}
		}
		return &ExecError{Kind: KindInvalidStatement, Detail: pgErr.Message, Err: err}
	}

	// Pool acquisition failures and dial errors arrive as plain errors.
	detail := err.Error()
	if strings.Contains(detail, "connect") || strings.Contains(detail, "closed pool") {
		return &ExecError{Kind: KindStoreUnavailable, Detail: detail, Err: err}
	}
	return &ExecError{Kind: KindStoreUnavailable, Detail: detail, Err: err}
}
