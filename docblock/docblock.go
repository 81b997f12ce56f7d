// Package docblock reads the type tags of PHP doc comments.
package docblock

import (
	"regexp"
	"strings"
)

// Block is a parsed doc comment.
type Block struct {
	Summary     string
	Description string

	Params []Param
	Return *Tag
	Vars   []Param
	Throws []Tag

	Deprecated bool

	// Tags holds every tag in source order, including the ones above.
	Tags []Tag
}

// Tag is a generic "@name body" tag. Type is only set for typed tags.
type Tag struct {
	Name        string
	Type        string
	Description string
}

// Param is a typed tag naming a variable (@param, @var).
type Param struct {
	Type        string
	Name        string // with the leading "$", empty if omitted
	Description string
	Variadic    bool
}

var tagLine = regexp.MustCompile(`^@([A-Za-z][\w\-\\:]*)\s*(.*)$`)

// Parse parses a "/** ... */" doc comment. It returns nil for anything that is not one.
// Malformed tags are skipped rather than reported.
func Parse(text string) *Block {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/**") || !strings.HasSuffix(text, "*/") || len(text) < 5 {
		return nil
	}

	lines := cleanLines(text[3 : len(text)-2])
	block := &Block{}

	var (
		prose    []string
		tagTexts []string
	)

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "@"):
			tagTexts = append(tagTexts, line)
		case len(tagTexts) > 0:
			// Continuation of the previous tag.
			if line != "" {
				tagTexts[len(tagTexts)-1] += " " + line
			}
		default:
			prose = append(prose, line)
		}
	}

	block.Summary, block.Description = splitProse(prose)

	for _, t := range tagTexts {
		m := tagLine.FindStringSubmatch(t)
		if m == nil {
			continue
		}

		block.addTag(normalizeTagName(m[1]), strings.TrimSpace(m[2]))
	}

	return block
}

func (b *Block) addTag(name, body string) {
	tag := Tag{Name: name, Description: body}

	switch name {
	case "param":
		p, ok := parseParam(body)
		if ok {
			b.Params = append(b.Params, p)
			tag.Type, tag.Description = p.Type, p.Description
		}
	case "var":
		p, ok := parseParam(body)
		if ok {
			b.Vars = append(b.Vars, p)
			tag.Type, tag.Description = p.Type, p.Description
		}
	case "return":
		typ, rest := splitType(body)
		if typ != "" {
			tag.Type, tag.Description = typ, rest
			ret := tag
			b.Return = &ret
		}
	case "throws":
		typ, rest := splitType(body)
		tag.Type, tag.Description = typ, rest
		b.Throws = append(b.Throws, tag)
	case "deprecated":
		b.Deprecated = true
	}

	b.Tags = append(b.Tags, tag)
}

// Param returns the @param tag for a variable name ("$x" or "x").
func (b *Block) Param(name string) (Param, bool) {
	if b == nil {
		return Param{}, false
	}

	name = "$" + strings.TrimPrefix(name, "$")

	for _, p := range b.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Param{}, false
}

// Var returns the @var tag for a variable name. A @var tag without a name matches any variable.
func (b *Block) Var(name string) (Param, bool) {
	if b == nil {
		return Param{}, false
	}

	name = "$" + strings.TrimPrefix(name, "$")

	for _, v := range b.Vars {
		if v.Name == name || v.Name == "" {
			return v, true
		}
	}

	return Param{}, false
}

// ReturnType returns the @return type or "".
func (b *Block) ReturnType() string {
	if b == nil || b.Return == nil {
		return ""
	}

	return b.Return.Type
}

// Text returns summary and description joined, for hover output.
func (b *Block) Text() string {
	if b == nil {
		return ""
	}

	if b.Description == "" {
		return b.Summary
	}

	return b.Summary + "\n\n" + b.Description
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

func cleanLines(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))

	for _, line := range raw {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		out = append(out, strings.TrimSpace(line))
	}

	// Drop leading and trailing blank lines.
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return out
}

func splitProse(lines []string) (string, string) {
	var summary []string

	i := 0
	for ; i < len(lines); i++ {
		if lines[i] == "" {
			break
		}

		summary = append(summary, lines[i])

		if strings.HasSuffix(lines[i], ".") {
			i++

			break
		}
	}

	description := strings.TrimSpace(strings.Join(lines[min(i, len(lines)):], "\n"))

	return strings.Join(summary, " "), description
}

// normalizeTagName maps tool-prefixed tags (@psalm-param, @phpstan-var) onto the plain ones.
func normalizeTagName(name string) string {
	for _, prefix := range []string{"psalm-", "phpstan-", "phan-"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return rest
		}
	}

	return name
}

// parseParam parses "Type $name description". A bare type is allowed for @var.
func parseParam(body string) (Param, bool) {
	if body == "" {
		return Param{}, false
	}

	var p Param

	if !strings.HasPrefix(body, "$") && !strings.HasPrefix(body, "...$") && !strings.HasPrefix(body, "&") {
		p.Type, body = splitType(body)
	}

	body = strings.TrimPrefix(body, "&")

	if rest, ok := strings.CutPrefix(body, "..."); ok {
		p.Variadic = true
		body = rest
	}

	if strings.HasPrefix(body, "$") {
		end := strings.IndexFunc(body, isSpace)
		if end < 0 {
			end = len(body)
		}

		p.Name = body[:end]
		body = body[end:]
	}

	p.Description = strings.TrimSpace(body)

	return p, p.Type != "" || p.Name != ""
}

// splitType reads a type expression up to the first space outside brackets.
func splitType(body string) (string, string) {
	depth := 0

	for i, r := range body {
		switch r {
		case '<', '(', '{', '[':
			depth++
		case '>', ')', '}', ']':
			depth = max(0, depth-1)
		default:
			if isSpace(r) && depth == 0 {
				return body[:i], strings.TrimSpace(body[i:])
			}
		}
	}

	return body, ""
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
