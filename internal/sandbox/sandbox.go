// Package sandbox runs untrusted snippets against a dataset inside a
// capability-scoped Starlark interpreter.
//
// The evaluation scope is built per call and contains exactly: the dataset
// binding ("df"), the pure math and json modules, and — for render calls — a
// plot module writing into a per-call figure slot. The Starlark universe has
// no file, network, process, or module capabilities, so nothing else is
// reachable. print() output is captured in order, never written to the real
// stdout, and a hard Thread.Cancel enforces the wall-clock time limit.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/figure"
)

const (
	// DatasetBinding is the name under which the dataset appears in scope.
	DatasetBinding = "df"

	// resultBinding is consulted when a snippet has no trailing expression:
	// a global named "result" stands in for the return value.
	resultBinding = "result"

	snippetFilename = "snippet.star"
)

// fileOpts enables the imperative dialect snippets expect: while loops,
// if/for at top level, set literals, rebinding globals, and recursion.
var fileOpts = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Options configure a single run.
type Options struct {
	TimeLimit time.Duration
	Plotting  bool // expose the plot module and figure slot
}

// Outcome is the successful result of a run.
type Outcome struct {
	Stdout   string
	Value    string // repr of the snippet's trailing expression, if any
	HasValue bool
	Figure   *figure.Figure // non-nil when a plotting call produced a chart
	Duration time.Duration
}

// Sandbox executes snippets. It is stateless and safe for concurrent use;
// all per-run state lives in the call frame.
type Sandbox struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sandbox {
	return &Sandbox{logger: logger}
}

// Run executes code against ds and captures its stdout, trailing-expression
// value, and (when Options.Plotting is set) produced figure.
//
// Failures are typed: ExecutionError when the snippet raises, TimeoutError
// when it exceeds Options.TimeLimit. Both carry the stdout captured before
// the failure point in the returned AppError. The evaluation scope is
// discarded on every exit path.
func (s *Sandbox) Run(ctx context.Context, code string, ds *dataset.Dataset, opts Options) (*Outcome, error) {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = 5 * time.Second
	}

	var stdout bytes.Buffer
	var slot *figure.Figure

	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
	}

	predeclared := starlark.StringDict{
		DatasetBinding: NewFrame(ds.Frame()),
		"math":         starlarkmath.Module,
		"json":         starlarkjson.Module,
	}
	if opts.Plotting {
		predeclared["plot"] = plotModule(&slot)
	}

	prefix, trailing, err := splitTrailingExpr(code)
	if err != nil {
		return nil, apperror.ExecutionFailed(err.Error())
	}

	// Hard cancellation: the timer (and a client disconnect) interrupt the
	// interpreter at its next instruction; every builtin in scope is
	// non-blocking, so the run always returns promptly.
	var timedOut atomic.Bool
	timer := time.AfterFunc(opts.TimeLimit, func() {
		timedOut.Store(true)
		thread.Cancel("time limit exceeded")
	})
	defer timer.Stop()
	stopWatch := context.AfterFunc(ctx, func() {
		thread.Cancel("request cancelled")
	})
	defer stopWatch()

	start := time.Now()
	globals, err := starlark.ExecFileOptions(fileOpts, thread, snippetFilename, prefix, predeclared)

	var value starlark.Value
	if err == nil && strings.TrimSpace(trailing) != "" {
		env := make(starlark.StringDict, len(predeclared)+len(globals))
		for k, v := range predeclared {
			env[k] = v
		}
		for k, v := range globals {
			env[k] = v
		}
		value, err = starlark.EvalOptions(fileOpts, thread, snippetFilename, trailing, env)
	}
	elapsed := time.Since(start)

	if err != nil {
		if timedOut.Load() {
			s.logger.Warn("snippet timed out", slog.Duration("limit", opts.TimeLimit))
			return nil, apperror.Timeout(opts.TimeLimit).WithStdout(stdout.String())
		}
		return nil, apperror.ExecutionFailed(evalMessage(err)).WithStdout(stdout.String())
	}

	out := &Outcome{
		Stdout:   stdout.String(),
		Figure:   slot,
		Duration: elapsed,
	}
	if value == nil || value == starlark.None {
		if rv, ok := globals[resultBinding]; ok && rv != starlark.None {
			value = rv
		}
	}
	if value != nil && value != starlark.None {
		out.Value = value.String()
		out.HasValue = true
	}
	return out, nil
}

// splitTrailingExpr separates the snippet's final expression statement from
// the statements before it, so the expression's value can be captured
// REPL-style. Snippets that end in a non-expression statement are returned
// unchanged.
func splitTrailingExpr(src string) (prefix, trailing string, err error) {
	f, err := fileOpts.Parse(snippetFilename, src, 0)
	if err != nil {
		return "", "", err
	}
	if len(f.Stmts) == 0 {
		return src, "", nil
	}
	es, ok := f.Stmts[len(f.Stmts)-1].(*syntax.ExprStmt)
	if !ok {
		return src, "", nil
	}
	pos, _ := es.Span()
	off := byteOffset(src, pos)
	return src[:off], src[off:], nil
}

// byteOffset converts a 1-based line/column position to a byte offset.
// Position columns count runes, so the final line is walked rune by rune.
func byteOffset(src string, pos syntax.Position) int {
	off := 0
	for line := int32(1); line < pos.Line; line++ {
		i := strings.IndexByte(src[off:], '\n')
		if i < 0 {
			return len(src)
		}
		off += i + 1
	}
	for col := int32(1); col < pos.Col && off < len(src); col++ {
		_, size := utf8.DecodeRuneInString(src[off:])
		off += size
	}
	return off
}

// evalMessage extracts the snippet-level message from an interpreter error,
// dropping the Go-side wrapping so callers see what the snippet saw.
func evalMessage(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Msg
	}
	return err.Error()
}
