package directive

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/vidembed/internal/errors"
	"github.com/conneroisu/vidembed/internal/logging"
)

// Policy decides what happens to a directive whose tag is not registered.
type Policy string

const (
	// PolicyError fails the page with an UnknownTagError.
	PolicyError Policy = "error"
	// PolicyKeep leaves the directive in the output untouched.
	PolicyKeep Policy = "keep"
	// PolicyRemove drops the directive from the output.
	PolicyRemove Policy = "remove"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyError, nil
	case PolicyError, PolicyKeep, PolicyRemove:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tag policy %q (supported: error, keep, remove)", s)
	}
}

// Renderer is the registry surface the expander needs.
type Renderer interface {
	Render(name, identifier string) (string, error)
}

// Use records one expanded directive.
type Use struct {
	Tag        string `yaml:"tag" json:"tag"`
	Identifier string `yaml:"id" json:"id"`
	Line       int    `yaml:"line" json:"line"`
}

// Result is the outcome of expanding one source.
type Result struct {
	Output  string
	Embeds  []Use
	Skipped []Directive
}

// Expander expands directives in page source.
type Expander struct {
	renderer Renderer
	policy   Policy
	logger   logging.Logger
}

// NewExpander creates an expander. A nil logger discards output.
func NewExpander(renderer Renderer, policy Policy, logger logging.Logger) *Expander {
	if logger == nil {
		logger = logging.Nop()
	}
	if policy == "" {
		policy = PolicyError
	}
	return &Expander{
		renderer: renderer,
		policy:   policy,
		logger:   logger.WithComponent("directive"),
	}
}

// Policy returns the configured unknown-tag policy.
func (e *Expander) Policy() Policy {
	return e.policy
}

// Expand replaces every directive in src with its rendered embed. file is
// used only to locate errors.
func (e *Expander) Expand(ctx context.Context, file, src string) (*Result, error) {
	nodes, err := Parse(src)
	if err != nil {
		return nil, errors.AsEmbedError(err, file, 0, 0)
	}

	result := &Result{}
	var out strings.Builder
	out.Grow(len(src))

	// pending holds literal text not yet written, so a following {%- can
	// still trim it. Rendered embeds and raw bodies are never trimmed.
	pending := ""
	trimNext := false
	flush := func() {
		out.WriteString(pending)
		pending = ""
	}

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if node.Verbatim {
			if node.TrimLeft {
				pending = strings.TrimRight(pending, whitespace)
			}
			flush()
			out.WriteString(node.Text)
			trimNext = node.TrimRight
			continue
		}

		if node.Directive == nil {
			text := node.Text
			if trimNext {
				text = strings.TrimLeft(text, whitespace)
			}
			pending += text
			trimNext = false
			continue
		}

		d := node.Directive
		rendered, err := e.renderer.Render(d.Name, d.Identifier)
		if err != nil {
			if !errors.IsUnknownTag(err) {
				return nil, errors.AsEmbedError(err, file, d.Line, d.Column)
			}
			switch e.policy {
			case PolicyKeep:
				// Kept directives leave their surroundings untouched.
				flush()
				out.WriteString(d.Raw)
				trimNext = false
			case PolicyRemove:
			default:
				return nil, errors.AsEmbedError(err, file, d.Line, d.Column)
			}
			result.Skipped = append(result.Skipped, *d)
			e.logger.Debug(ctx, "Skipped unknown tag",
				"tag", d.Name, "file", file, "line", d.Line, "policy", string(e.policy))
			if e.policy == PolicyKeep {
				continue
			}
		} else {
			result.Embeds = append(result.Embeds, Use{Tag: d.Name, Identifier: d.Identifier, Line: d.Line})
		}

		if d.TrimLeft {
			pending = strings.TrimRight(pending, whitespace)
		}
		flush()
		out.WriteString(rendered)
		trimNext = d.TrimRight
	}
	flush()

	result.Output = out.String()
	return result, nil
}

// ExpandString is a convenience wrapper for a source without a file name.
func (e *Expander) ExpandString(src string) (string, error) {
	result, err := e.Expand(context.Background(), "", src)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
