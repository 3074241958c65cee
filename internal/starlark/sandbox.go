package starlark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kingdombarber/insight/pkg/dataset"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ScriptFile is the file name scripts are compiled under. It shows up in
// error positions.
const ScriptFile = "query.star"

// Default execution limits.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxSteps       = 50_000_000
	DefaultMaxOutputBytes = 64 << 10
)

// fileOptions enables the Python-like constructs generated scripts rely on:
// while loops, top-level if/for, sets, rebinding globals and recursion.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Limits bounds a single script run. Zero values disable a limit.
type Limits struct {
	Timeout        time.Duration
	MaxSteps       uint64
	MaxOutputBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		Timeout:        DefaultTimeout,
		MaxSteps:       DefaultMaxSteps,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Result is what a successful run captured.
type Result struct {
	// Output is everything the script printed, successive prints joined by "\n".
	Output   string
	Steps    uint64
	Duration time.Duration
}

// Sandbox executes scripts. It holds no per-run state and is safe for
// concurrent use.
type Sandbox struct {
	limits Limits
	logger *slog.Logger
}

// NewSandbox creates a sandbox with the given limits.
func NewSandbox(limits Limits, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{limits: limits, logger: logger}
}

// Limits returns the configured limits.
func (s *Sandbox) Limits() Limits { return s.limits }

// Run executes script against a private copy of ds. On failure the error is
// a *ScriptError and nothing the script printed is returned.
func (s *Sandbox) Run(ctx context.Context, script string, ds *dataset.Dataset) (Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{}, &ScriptError{Kind: KindCancelled, File: ScriptFile, Message: fmt.Sprintf("execution cancelled: %v", context.Cause(ctx)), Err: err}
	}
	if ds == nil {
		ds, _ = dataset.New(nil, nil)
	}

	runCtx := ctx
	if s.limits.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
		defer cancel()
	}

	out := &capture{limit: s.limits.MaxOutputBytes}
	thread := &starlark.Thread{
		Name:  ScriptFile,
		Print: out.print,
	}
	if s.limits.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(s.limits.MaxSteps)
	}
	out.onOverflow = func() { thread.Cancel("output limit exceeded") }

	stop := context.AfterFunc(runCtx, func() {
		thread.Cancel(context.Cause(runCtx).Error())
	})
	defer stop()

	err := execute(thread, script, Predeclared(ds.Clone()))

	res := Result{Steps: thread.ExecutionSteps(), Duration: time.Since(start)}
	if serr := s.failure(ctx, runCtx, thread, out, err); serr != nil {
		s.logger.Debug("script failed",
			"kind", serr.Kind,
			"error", serr.Message,
			"steps", res.Steps,
			"duration", res.Duration)
		return res, serr
	}

	res.Output = out.String()
	s.logger.Debug("script finished",
		"steps", res.Steps,
		"output_bytes", len(res.Output),
		"duration", res.Duration)
	return res, nil
}

// execute runs the script, turning interpreter panics into errors.
func execute(thread *starlark.Thread, script string, globals starlark.StringDict) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{Kind: KindPanic, File: ScriptFile, Message: fmt.Sprint(r)}
		}
	}()
	_, err = starlark.ExecFileOptions(fileOptions, thread, ScriptFile, script, globals)
	return err
}

// failure decides whether a run failed and why. Limits take precedence over
// the interpreter's message because they surface as generic cancellations.
func (s *Sandbox) failure(parent, runCtx context.Context, thread *starlark.Thread, out *capture, err error) *ScriptError {
	switch {
	case out.overflow:
		return &ScriptError{
			Kind:    KindOutputLimit,
			File:    ScriptFile,
			Message: fmt.Sprintf("output exceeded %d bytes", s.limits.MaxOutputBytes),
			Err:     err,
		}
	case err == nil:
		return nil
	}

	var serr *ScriptError
	if errors.As(err, &serr) {
		return serr
	}
	serr = classify(ScriptFile, err)

	switch {
	case parent.Err() != nil:
		serr.Kind = KindCancelled
		serr.Message = fmt.Sprintf("execution cancelled: %v", context.Cause(parent))
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		serr.Kind = KindTimeout
		serr.Message = fmt.Sprintf("execution exceeded %s", s.limits.Timeout)
	case s.limits.MaxSteps > 0 && thread.ExecutionSteps() >= s.limits.MaxSteps:
		serr.Kind = KindStepLimit
		serr.Message = fmt.Sprintf("execution exceeded %d steps", s.limits.MaxSteps)
	}
	return serr
}

// capture is the per-run print buffer. A thread runs on one goroutine, so
// it needs no locking.
type capture struct {
	buf        bytes.Buffer
	limit      int
	lines      int
	overflow   bool
	onOverflow func()
}

func (c *capture) print(_ *starlark.Thread, msg string) {
	if c.overflow {
		return
	}
	n := len(msg)
	if c.lines > 0 {
		n++
	}
	if c.limit > 0 && c.buf.Len()+n > c.limit {
		c.overflow = true
		if c.onOverflow != nil {
			c.onOverflow()
		}
		return
	}
	if c.lines > 0 {
		c.buf.WriteByte('\n')
	}
	c.buf.WriteString(msg)
	c.lines++
}

func (c *capture) String() string { return c.buf.String() }
