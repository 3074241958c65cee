package prompt

import (
	"slices"
	"strings"
)

// Template is a parsed prompt with named {{ slot }} placeholders.
type Template struct {
	Name   string
	tokens []Token
}

// Parse lexes text into a Template. name is used in error positions.
func Parse(name, text string) (*Template, error) {
	tokens, err := NewLexer(text, name).Tokenize()
	if err != nil {
		return nil, err
	}
	return &Template{Name: name, tokens: tokens}, nil
}

// Slots returns the distinct slot names in order of first use.
func (t *Template) Slots() []string {
	var names []string
	for _, tok := range t.tokens {
		if tok.Type == TokenSlot && !slices.Contains(names, tok.Value) {
			names = append(names, tok.Value)
		}
	}
	return names
}

// Render fills every slot from values. A slot without a value is an error;
// values that no slot uses are ignored.
func (t *Template) Render(values map[string]string) (string, error) {
	var sb strings.Builder
	for _, tok := range t.tokens {
		switch tok.Type {
		case TokenText:
			sb.WriteString(tok.Value)
		case TokenSlot:
			v, ok := values[tok.Value]
			if !ok {
				return "", NewRenderErrorf(tok.Pos, tok.Value, "no value for slot %q", tok.Value)
			}
			sb.WriteString(v)
		}
	}
	return sb.String(), nil
}
