// Package directive scans page source for Liquid-style tag directives such as
// {% youtube abc123 %} and splices in the output of the matching renderer.
//
// Supported syntax:
//
//	{% name identifier %}   expanded through the registry
//	{%- name identifier -%} the same, trimming whitespace on the marked side
//	{% raw %}...{% endraw %} emitted verbatim without expansion
//
// Trim markers work on raw and endraw too: {%- raw -%} trims outside the
// block on the left and inside it on the right, {%- endraw -%} the reverse.
//
// The identifier is the remainder of the directive with surrounding
// whitespace removed. It is never validated.
package directive

import (
	"strings"
	"unicode"

	"github.com/conneroisu/vidembed/internal/errors"
)

const (
	openDelim  = "{%"
	closeDelim = "%}"

	rawTag    = "raw"
	endRawTag = "endraw"

	whitespace = " \t\r\n"
)

// Directive is one parsed tag occurrence.
type Directive struct {
	Name       string
	Identifier string
	Raw        string // exact source text, delimiters included
	Start, End int    // byte offsets into the source
	Line       int
	Column     int
	TrimLeft   bool
	TrimRight  bool
}

// Node is either literal text or a directive. Exactly one of the two is set.
// Verbatim marks the body of a raw block; TrimLeft and TrimRight carry the
// markers of its enclosing raw and endraw directives.
type Node struct {
	Text      string
	Directive *Directive
	Verbatim  bool
	TrimLeft  bool
	TrimRight bool
}

// Parse splits src into literal text and directives. Text inside raw blocks
// is returned as literal text.
func Parse(src string) ([]Node, error) {
	var nodes []Node
	pos := 0

	for pos < len(src) {
		idx := strings.Index(src[pos:], openDelim)
		if idx < 0 {
			nodes = append(nodes, Node{Text: src[pos:]})
			break
		}
		start := pos + idx
		if start > pos {
			nodes = append(nodes, Node{Text: src[pos:start]})
		}

		d, err := parseAt(src, start)
		if err != nil {
			return nil, err
		}

		if d.Name == rawTag {
			body, closing, err := rawBody(src, d)
			if err != nil {
				return nil, err
			}
			if d.TrimRight {
				body = strings.TrimLeft(body, whitespace)
			}
			if closing.TrimLeft {
				body = strings.TrimRight(body, whitespace)
			}
			if body != "" || d.TrimLeft || closing.TrimRight {
				nodes = append(nodes, Node{
					Text:      body,
					Verbatim:  true,
					TrimLeft:  d.TrimLeft,
					TrimRight: closing.TrimRight,
				})
			}
			pos = closing.End
			continue
		}

		nodes = append(nodes, Node{Directive: d})
		pos = d.End
	}

	return nodes, nil
}

// parseAt parses the directive whose opening delimiter starts at offset start.
func parseAt(src string, start int) (*Directive, error) {
	line, col := Position(src, start)

	closeIdx := strings.Index(src[start+len(openDelim):], closeDelim)
	if closeIdx < 0 {
		return nil, &errors.SyntaxError{
			Code:    errors.ErrCodeUnterminated,
			Line:    line,
			Column:  col,
			Message: "unterminated directive: missing " + closeDelim,
		}
	}
	end := start + len(openDelim) + closeIdx + len(closeDelim)

	d := &Directive{
		Raw:    src[start:end],
		Start:  start,
		End:    end,
		Line:   line,
		Column: col,
	}

	inner := src[start+len(openDelim) : end-len(closeDelim)]
	if strings.HasPrefix(inner, "-") {
		d.TrimLeft = true
		inner = inner[1:]
	}
	if strings.HasSuffix(inner, "-") {
		d.TrimRight = true
		inner = inner[:len(inner)-1]
	}

	inner = strings.TrimSpace(inner)
	if inner == "" {
		return nil, &errors.SyntaxError{
			Code:    errors.ErrCodeEmptyDirective,
			Line:    line,
			Column:  col,
			Message: "empty directive",
		}
	}

	d.Name, d.Identifier = inner, ""
	if i := strings.IndexFunc(inner, unicode.IsSpace); i >= 0 {
		d.Name = inner[:i]
		d.Identifier = strings.TrimSpace(inner[i:])
	}

	return d, nil
}

// rawBody returns the verbatim text of a raw block opened by d and its
// closing endraw directive.
func rawBody(src string, d *Directive) (string, *Directive, error) {
	pos := d.End
	for {
		idx := strings.Index(src[pos:], openDelim)
		if idx < 0 {
			return "", nil, &errors.SyntaxError{
				Code:    errors.ErrCodeUnterminated,
				Line:    d.Line,
				Column:  d.Column,
				Message: "raw block is missing {% endraw %}",
			}
		}
		candidate := pos + idx
		closing, err := parseAt(src, candidate)
		if err == nil && closing.Name == endRawTag {
			return src[d.End:candidate], closing, nil
		}
		pos = candidate + len(openDelim)
	}
}

// Position converts a byte offset into a 1-based line and column.
func Position(src string, offset int) (line, column int) {
	if offset > len(src) {
		offset = len(src)
	}
	prefix := src[:offset]
	line = strings.Count(prefix, "\n") + 1
	column = offset - strings.LastIndex(prefix, "\n")
	return line, column
}
