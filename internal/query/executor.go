package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// Row is one retrieved record: column name to scalar value. Row order in
// a Result follows the statement's ordering.
type Row = map[string]any

// Result is the outcome of a successful execution.
type Result struct {
	Rows []Row

	// Truncated marks that the underlying result set exceeded the hard
	// row cap and was cut off. Callers must surface this so a capped
	// answer is never mistaken for a complete one.
	Truncated bool
}

// Pool is the subset of *pgxpool.Pool the executor needs. Defined here,
// by the consumer, so tests can substitute a fake.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ExecutorConfig bounds execution.
type ExecutorConfig struct {
	// Timeout is the hard per-statement execution deadline.
	Timeout time.Duration

	// MaxRows is the hard row cap, independent of any LIMIT inside the
	// statement. Bounds memory regardless of generation-stage mistakes.
	MaxRows int
}

// Executor runs gate-approved statements against the transactional
// store. Safe for concurrent use; the pool is the only shared resource.
type Executor struct {
	pool    Pool
	gate    *Gate
	timeout time.Duration
	maxRows int
	logger  *slog.Logger
}

// NewExecutor creates an executor over the given pool. The gate is built
// from the same row cap so injected limits and the hard cap agree.
func NewExecutor(pool Pool, cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		pool:    pool,
		gate:    NewGate(cfg.MaxRows),
		timeout: cfg.Timeout,
		maxRows: cfg.MaxRows,
		logger:  logger,
	}
}

// Run validates the statement and executes it, returning ordered row
// mappings. Failures are *UnsafeStatementError (gate) or *ExecError
// (store), never raw driver errors.
func (e *Executor) Run(ctx context.Context, statement string) (*Result, error) {
	bounded, err := e.gate.Check(statement)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.pool.Query(ctx, bounded)
	if err != nil {
		return nil, classifyExecError(err)
	}
	defer rows.Close()

	result, err := e.collect(rows)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("statement executed",
		"rows", len(result.Rows),
		"truncated", result.Truncated,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// collect drains rows up to the hard cap. One extra Next() call detects
// result sets that exceed the cap.
func (e *Executor) collect(rows pgx.Rows) (*Result, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := &Result{Rows: make([]Row, 0)}
	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, classifyExecError(err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, classifyExecError(err)
	}
	return result, nil
}

// normalizeValue converts driver-level values into JSON-friendly scalars.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}
