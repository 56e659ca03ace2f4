package snippet

import (
	"fmt"
	"regexp"
	"strings"
)

var bindingPattern = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)

const maxBindingNameLength = 63

type Binding struct {
	Name  string
	Query string
}

type Program struct {
	Bindings []Binding
}

func (p Program) Binds(name string) bool {
	for _, binding := range p.Bindings {
		if binding.Name == name {
			return true
		}
	}
	return false
}

// SyntaxError reports a snippet that is not a well formed binding program.
// Statement is 1-based; zero means the error is not tied to one statement.
type SyntaxError struct {
	Statement int
	Binding   string
	Message   string
}

func (e *SyntaxError) Error() string {
	if e.Statement == 0 {
		return "snippet syntax error: " + e.Message
	}
	if e.Binding != "" {
		return fmt.Sprintf("snippet syntax error in statement %d (%s): %s", e.Statement, e.Binding, e.Message)
	}
	return fmt.Sprintf("snippet syntax error in statement %d: %s", e.Statement, e.Message)
}

// Parse splits a sanitized snippet into bindings. Statements are separated by
// semicolons outside of string literals, dollar quoted strings, quoted
// identifiers and comments.
// Comments are removed from the returned queries.
func Parse(text string) (Program, error) {
	statements, err := splitStatements(text)
	if err != nil {
		return Program{}, err
	}
	if len(statements) == 0 {
		return Program{}, &SyntaxError{Message: "snippet has no statements"}
	}

	program := Program{Bindings: make([]Binding, 0, len(statements))}
	for i, statement := range statements {
		match := bindingPattern.FindStringSubmatch(statement)
		if match == nil {
			return Program{}, &SyntaxError{Statement: i + 1, Message: fmt.Sprintf("expected `name = query`, got %q", abbreviate(statement))}
		}
		name, body := match[1], strings.TrimSpace(match[2])
		if len(name) > maxBindingNameLength {
			return Program{}, &SyntaxError{Statement: i + 1, Binding: name, Message: "binding name is too long"}
		}
		if body == "" {
			return Program{}, &SyntaxError{Statement: i + 1, Binding: name, Message: "binding has no query"}
		}
		program.Bindings = append(program.Bindings, Binding{Name: name, Query: body})
	}
	return program, nil
}

func splitStatements(text string) ([]string, error) {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		if statement := strings.TrimSpace(current.String()); statement != "" {
			statements = append(statements, statement)
		}
		current.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			end, ok := closingQuote(text, i)
			if !ok {
				return nil, &SyntaxError{Statement: len(statements) + 1, Message: fmt.Sprintf("unterminated %c quote", c)}
			}
			current.WriteString(text[i : end+1])
			i = end
		case c == '$':
			tag, ok := dollarTag(text, i)
			if !ok {
				current.WriteByte(c)
				continue
			}
			end := strings.Index(text[i+len(tag):], tag)
			if end < 0 {
				return nil, &SyntaxError{Statement: len(statements) + 1, Message: fmt.Sprintf("unterminated %s string", tag)}
			}
			end += i + 2*len(tag)
			current.WriteString(text[i:end])
			i = end - 1
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				i = len(text)
			} else {
				i += end
			}
			current.WriteByte('\n')
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return nil, &SyntaxError{Statement: len(statements) + 1, Message: "unterminated block comment"}
			}
			i += end + 3
			current.WriteByte(' ')
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return statements, nil
}

// closingQuote returns the index of the quote that closes the literal opened
// at start. Doubled quotes are escapes.
func closingQuote(text string, start int) (int, bool) {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		if text[i] != quote {
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i++
			continue
		}
		return i, true
	}
	return 0, false
}

// dollarTag returns the opening delimiter of a dollar quoted string starting
// at start, either $$ or $tag$. Positional parameters such as $1 are not tags.
func dollarTag(text string, start int) (string, bool) {
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '$':
			return text[start : i+1], true
		case c == '_' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > start+1:
		default:
			return "", false
		}
	}
	return "", false
}

func abbreviate(statement string) string {
	statement = strings.Join(strings.Fields(statement), " ")
	if len(statement) > 60 {
		return statement[:57] + "..."
	}
	return statement
}
