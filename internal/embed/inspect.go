package embed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	vderrors "github.com/conneroisu/vidembed/internal/errors"
)

// Frame is what Inspect reads back out of a rendered fragment.
type Frame struct {
	Src    string
	Width  int
	Height int
}

// Inspect parses a rendered fragment and returns its single iframe. It fails
// when the fragment holds zero or several iframes.
func Inspect(fragment string) (*Frame, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}

	frames := doc.Find("iframe")
	if frames.Length() != 1 {
		return nil, fmt.Errorf("expected exactly one iframe, found %d", frames.Length())
	}

	frame := &Frame{Src: frames.AttrOr("src", "")}
	if frame.Width, err = strconv.Atoi(frames.AttrOr("width", "")); err != nil {
		return nil, fmt.Errorf("width attribute: %w", err)
	}
	if frame.Height, err = strconv.Atoi(frames.AttrOr("height", "")); err != nil {
		return nil, fmt.Errorf("height attribute: %w", err)
	}

	return frame, nil
}

// Check renders the tag with a sample identifier and verifies the output is a
// single iframe carrying the tag's dimensions and URL.
func (t Tag) Check(sample string) error {
	frame, err := Inspect(t.Render(Request{Identifier: sample}))
	if err != nil {
		return vderrors.ErrInvalidTag(t.Provider, err.Error())
	}
	if frame.Width != t.Width || frame.Height != t.Height {
		return vderrors.ErrInvalidTag(t.Provider,
			fmt.Sprintf("rendered %dx%d, want %dx%d", frame.Width, frame.Height, t.Width, t.Height))
	}
	if frame.Src != t.URL(sample) {
		return vderrors.ErrInvalidTag(t.Provider,
			fmt.Sprintf("rendered src %q, want %q", frame.Src, t.URL(sample)))
	}
	return nil
}

// Validate checks a tag definition before it is registered.
func (t Tag) Validate() error {
	switch {
	case strings.TrimSpace(t.Provider) == "":
		return vderrors.ErrInvalidTag(t.Provider, "provider name is required")
	case strings.ContainsAny(t.Provider, " \t\r\n%{}"):
		return vderrors.ErrInvalidTag(t.Provider, "provider name must be a single word")
	case !strings.Contains(t.URLTemplate, Placeholder):
		return vderrors.ErrInvalidTag(t.Provider, "url_template must contain "+Placeholder)
	case strings.ContainsAny(t.URLTemplate, `"<>`):
		return vderrors.ErrInvalidTag(t.Provider, "url_template must not contain quotes or angle brackets")
	case t.Width <= 0 || t.Height <= 0:
		return vderrors.ErrInvalidTag(t.Provider, "width and height must be positive")
	}
	for _, attr := range t.ExtraAttributes {
		if attr == "" || strings.ContainsAny(attr, `<>`) {
			return vderrors.ErrInvalidTag(t.Provider, fmt.Sprintf("invalid attribute %q", attr))
		}
	}
	return nil
}
