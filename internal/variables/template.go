package variables

import (
	"fmt"
	"strings"
)

type part struct {
	text  string
	isVar bool
}

// Template is a string with zero or more {{ variable }} placeholders.
type Template struct {
	parts []part
}

// ParseTemplate parses placeholder syntax. Placeholders contain a single
// variable name, optionally surrounded by spaces. Unterminated or empty
// placeholders are errors.
func ParseTemplate(s string) (*Template, error) {
	var parts []part
	rest := s
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		if open > 0 {
			parts = append(parts, part{text: rest[:open]})
		}
		rest = rest[open+2:]
		closing := strings.Index(rest, "}}")
		if closing < 0 {
			return nil, fmt.Errorf("unterminated placeholder in template %q", s)
		}
		name := strings.TrimSpace(rest[:closing])
		if err := ValidateKey(name); err != nil {
			return nil, fmt.Errorf("template %q: %w", s, err)
		}
		parts = append(parts, part{text: name, isVar: true})
		rest = rest[closing+2:]
	}
	if rest != "" {
		parts = append(parts, part{text: rest})
	}
	return &Template{parts: parts}, nil
}

// References returns the variable names the template mentions.
func (t *Template) References() []string {
	var refs []string
	for _, p := range t.parts {
		if p.isVar {
			refs = append(refs, p.text)
		}
	}
	return refs
}

// IsLiteral reports whether the template contains no placeholders.
func (t *Template) IsLiteral() bool {
	return len(t.References()) == 0
}
