package prompt

import "fmt"

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents an error during lexical analysis.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// NewLexErrorf creates a new lexer error with formatting.
func NewLexErrorf(pos Position, format string, args ...any) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// RenderError reports a slot that could not be filled.
type RenderError struct {
	baseError
	Slot string
}

// NewRenderErrorf creates a new render error with formatting.
func NewRenderErrorf(pos Position, slot, format string, args ...any) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}, Slot: slot}
}
