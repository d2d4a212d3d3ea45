package build

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/conneroisu/vidembed/internal/directive"
	"github.com/conneroisu/vidembed/internal/errors"
)

var frontMatterDelim = []byte("---")

// FrontMatter is the subset of page front matter the pipeline reads. Setting
// embeds to false copies the page without expanding directives.
type FrontMatter struct {
	Title  string `yaml:"title"`
	Layout string `yaml:"layout"`
	Embeds *bool  `yaml:"embeds"`
}

// Page is one expanded page as recorded in the manifest.
type Page struct {
	Path    string          `yaml:"path" json:"path"`
	Title   string          `yaml:"title,omitempty" json:"title,omitempty"`
	Embeds  []directive.Use `yaml:"embeds,omitempty" json:"embeds,omitempty"`
	Skipped []string        `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Hash    string          `yaml:"hash" json:"hash"`
}

// ExpandPage expands the directives in a page body. Front matter, when
// present, is kept verbatim at the top of the output and line numbers in
// errors and embeds refer to the whole file.
func ExpandPage(ctx context.Context, expander *directive.Expander, path string, data []byte) ([]byte, *Page, error) {
	var matter FrontMatter
	header, body := []byte(nil), data
	if bytes.HasPrefix(data, frontMatterDelim) {
		rest, err := frontmatter.Parse(bytes.NewReader(data), &matter)
		if err != nil {
			return nil, nil, errors.NewBuildError(errors.ErrCodeBuildFailed, "invalid front matter", err).
				WithLocation(path, 1, 1)
		}
		body = rest
		if bytes.HasSuffix(data, rest) {
			header = data[:len(data)-len(rest)]
		}
	}

	page := &Page{Path: path, Title: matter.Title}

	if matter.Embeds != nil && !*matter.Embeds {
		return data, page, nil
	}

	result, err := expander.Expand(ctx, path, string(body))
	if err != nil {
		return nil, nil, shiftLines(err, strings.Count(string(header), "\n"))
	}

	offset := strings.Count(string(header), "\n")
	for _, use := range result.Embeds {
		use.Line += offset
		page.Embeds = append(page.Embeds, use)
	}
	for _, d := range result.Skipped {
		page.Skipped = append(page.Skipped, fmt.Sprintf("%s:%d", d.Name, d.Line+offset))
	}

	out := make([]byte, 0, len(header)+len(result.Output))
	out = append(out, header...)
	out = append(out, result.Output...)
	return out, page, nil
}

func shiftLines(err error, offset int) error {
	var ee *errors.EmbedError
	if offset > 0 && stderrors.As(err, &ee) && ee.Line > 0 {
		ee.Line += offset
	}
	return err
}
