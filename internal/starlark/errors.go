package starlark

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrorKind classifies why a script did not produce a result.
type ErrorKind string

// Script failure kinds.
const (
	KindCompile     ErrorKind = "compile"
	KindRuntime     ErrorKind = "runtime"
	KindTimeout     ErrorKind = "timeout"
	KindStepLimit   ErrorKind = "step_limit"
	KindOutputLimit ErrorKind = "output_limit"
	KindCancelled   ErrorKind = "cancelled"
	KindPanic       ErrorKind = "panic"
)

// ScriptError reports a failed script run. Message is the interpreter's own
// description of the fault.
type ScriptError struct {
	Kind      ErrorKind
	File      string
	Line      int
	Message   string
	Backtrace string
	Err       error
}

func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s error: %s", e.File, e.Line, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// classify turns an interpreter error into a ScriptError.
func classify(file string, err error) *ScriptError {
	var (
		syntaxErr  syntax.Error
		resolveErr resolve.ErrorList
		evalErr    *starlark.EvalError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return &ScriptError{Kind: KindCompile, File: file, Line: int(syntaxErr.Pos.Line), Message: syntaxErr.Msg, Err: err}
	case errors.As(err, &resolveErr) && len(resolveErr) > 0:
		msgs := make([]string, len(resolveErr))
		for i, e := range resolveErr {
			msgs[i] = e.Msg
		}
		return &ScriptError{Kind: KindCompile, File: file, Line: int(resolveErr[0].Pos.Line), Message: strings.Join(msgs, "; "), Err: err}
	case errors.As(err, &evalErr):
		se := &ScriptError{Kind: KindRuntime, File: file, Message: evalErr.Msg, Backtrace: evalErr.Backtrace(), Err: err}
		for i := range evalErr.CallStack {
			// Innermost frame with a position; builtins have none.
			if line := evalErr.CallStack.At(i).Pos.Line; line > 0 {
				se.Line = int(line)
				break
			}
		}
		return se
	default:
		return &ScriptError{Kind: KindRuntime, File: file, Message: err.Error(), Err: err}
	}
}
