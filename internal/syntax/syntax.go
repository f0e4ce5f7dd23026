// Package syntax tokenises submitted code for the line highlighter and
// normalises the language identifiers reported by the model.
package syntax

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Token is a syntax-classified chunk of a line.
type Token struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Line holds the tokens of one source line.
type Line struct {
	Tokens []Token `json:"tokens"`
}

// Plain returns the concatenated text of all tokens.
func (l Line) Plain() string {
	var b strings.Builder
	for _, t := range l.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// NormalizeLanguage maps a language name to an identifier the highlighter knows.
// Unknown names are returned lowercased.
func NormalizeLanguage(language string) string {
	name := strings.ToLower(strings.TrimSpace(language))
	if name == "" {
		return ""
	}

	lexer := lexers.Get(name)
	if lexer == nil {
		return name
	}

	config := lexer.Config()
	for _, alias := range config.Aliases {
		if alias == name {
			return name
		}
	}
	if len(config.Aliases) > 0 {
		return config.Aliases[0]
	}
	return strings.ToLower(config.Name)
}

// LanguageForFile guesses the language of a file from its name. It returns an
// empty string when no lexer claims the name.
func LanguageForFile(filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		return ""
	}
	config := lexer.Config()
	if len(config.Aliases) > 0 {
		return config.Aliases[0]
	}
	return strings.ToLower(config.Name)
}

// Tokenize splits code into one Line per source line. When no lexer matches the
// language the lines are returned as single text tokens.
func Tokenize(language, code string) []Line {
	lines := strings.Split(code, "\n")

	lexer := lexerFor(language, code)
	if lexer == nil {
		return plainLines(lines)
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plainLines(lines)
	}

	result := make([]Line, 0, len(lines))
	current := Line{}
	for _, token := range iterator.Tokens() {
		parts := strings.Split(token.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				result = append(result, current)
				current = Line{}
			}
			if part != "" {
				current.Tokens = append(current.Tokens, Token{Text: part, Type: token.Type.String()})
			}
		}
	}
	result = append(result, current)

	// lexers commonly emit a trailing newline the source did not have
	if len(result) > len(lines) {
		result = result[:len(lines)]
	}
	for len(result) < len(lines) {
		result = append(result, Line{})
	}

	return result
}

func lexerFor(language, code string) chroma.Lexer {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}

func plainLines(lines []string) []Line {
	result := make([]Line, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		result[i] = Line{Tokens: []Token{{Text: line, Type: chroma.Text.String()}}}
	}
	return result
}
