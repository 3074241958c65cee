package prompt

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for prompt template tokens.
const (
	TokenText TokenType = iota // Literal prompt text
	TokenSlot                  // Slot name (between {{ and }})
	TokenEOF                   // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenSlot:
		return "SLOT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a prompt template.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}
	if l.matchString("{{") {
		return l.scanSlot()
	}
	return l.scanText(), nil
}

// scanText scans literal text until a slot or EOF.
func (l *Lexer) scanText() Token {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) && !l.matchString("{{") {
		l.advance()
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}
}

// scanSlot scans a {{ name }} slot. The name must be an identifier.
func (l *Lexer) scanSlot() (Token, error) {
	l.markStart()

	l.pos += 2
	l.col += 2

	start := l.pos
	for l.pos < len(l.input) {
		if l.matchString("}}") {
			name := strings.TrimSpace(l.input[start:l.pos])
			l.pos += 2
			l.col += 2

			if name == "" {
				return Token{}, NewLexError(l.startPosition(), "empty slot")
			}
			if !isIdentifier(name) {
				return Token{}, NewLexErrorf(l.startPosition(), "invalid slot name %q", name)
			}
			return Token{
				Type:  TokenSlot,
				Value: name,
				Pos:   l.startPosition(),
			}, nil
		}
		if l.peek() == '\n' {
			break
		}
		l.advance()
	}

	return Token{}, NewLexError(l.startPosition(), "unclosed slot: missing '}}'")
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}
