package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotReadOnly is returned when an executor is handed anything but a single SELECT.
var ErrNotReadOnly = errors.New("only read-only SELECT queries are permitted")

// QueryResult holds the rows of one execution
type QueryResult struct {
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	ExecutionTime time.Duration    `json:"execution_time"`
}

// Executor runs validated, read-only SQL against one engine.
type Executor interface {
	Execute(ctx context.Context, sql string) (*QueryResult, error)
	Dialect() Dialect
	TestConnection(ctx context.Context) error
	Close() error
}

// Outcome is the result of running a query. It is exactly one of Executed or ExecutionFailed.
type Outcome interface {
	outcome()
}

// Executed carries the rows of a successful run.
type Executed struct {
	Result *QueryResult
}

// ExecutionFailed carries the error of a failed run.
type ExecutionFailed struct {
	Err error
}

func (Executed) outcome()        {}
func (ExecutionFailed) outcome() {}

// Run executes sql and folds the result into an Outcome.
func Run(ctx context.Context, exec Executor, sql string) Outcome {
	res, err := exec.Execute(ctx, sql)
	if err != nil {
		return ExecutionFailed{Err: err}
	}
	return Executed{Result: res}
}

var writeKeywordRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|attach|detach|pragma|grant|revoke|copy|install|load|vacuum|call|merge)\b`)

// ensureReadOnly is the executor's own guard, independent of the validator.
// It returns the statement without its trailing semicolon.
func ensureReadOnly(sql string) (string, error) {
	clean := strings.TrimSpace(sql)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, ";"))
	if clean == "" {
		return "", fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}

	upper := strings.ToUpper(clean)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", fmt.Errorf("%w: statement must start with SELECT or WITH", ErrNotReadOnly)
	}
	if hasBareSemicolon(clean) {
		return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if kw := writeKeywordRe.FindString(clean); kw != "" {
		return "", fmt.Errorf("%w: contains %s", ErrNotReadOnly, strings.ToUpper(kw))
	}
	return clean, nil
}

// hasBareSemicolon reports a semicolon outside quoted text. Quoting with a
// backslash or left open makes the boundaries uncertain, so any semicolon counts.
func hasBareSemicolon(sql string) bool {
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == '\\' {
				return strings.Contains(sql, ";")
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ';':
			return true
		}
	}
	return quote != 0 && strings.Contains(sql, ";")
}
