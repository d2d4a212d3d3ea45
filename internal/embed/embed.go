// Package embed defines the video embed tags and the pure renderers that turn
// a video identifier into an <iframe> fragment.
//
// A Tag is an immutable description of one provider: the player URL template,
// the fixed frame dimensions and the vendor attribute fragments appended after
// frameborder. Rendering never fails and never validates the identifier; it is
// interpolated verbatim into the URL and the src attribute.
package embed

import (
	"html"
	"net/url"
	"strconv"
	"strings"
)

// Placeholder marks where the identifier goes in a URL template.
const Placeholder = "{id}"

// Default frame dimensions shared by the built-in providers.
const (
	DefaultWidth  = 640
	DefaultHeight = 510
)

// Renderer maps a video identifier to an HTML embed fragment.
type Renderer func(identifier string) string

// Request holds the raw identifier extracted from a directive for a single
// render call.
type Request struct {
	Identifier string
}

// Tag describes how a provider's embed is rendered. DimensionsFirst emits
// width and height before src.
type Tag struct {
	Provider        string   `yaml:"name" json:"name"`
	URLTemplate     string   `yaml:"url_template" json:"url_template"`
	Width           int      `yaml:"width" json:"width"`
	Height          int      `yaml:"height" json:"height"`
	DimensionsFirst bool     `yaml:"dimensions_first" json:"dimensions_first"`
	ExtraAttributes []string `yaml:"attributes" json:"attributes"`
}

// Built-in providers.
var (
	BlipTV = Tag{
		Provider:        "bliptv",
		URLTemplate:     "http://blip.tv/play/{id}.html?p=1",
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		ExtraAttributes: []string{"allowfullscreen"},
	}

	Vimeo = Tag{
		Provider:        "vimeo",
		URLTemplate:     "http://player.vimeo.com/video/{id}",
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		ExtraAttributes: []string{"webkitAllowFullScreen", "mozallowfullscreen", "allowFullScreen"},
	}

	YouTube = Tag{
		Provider:        "youtube",
		URLTemplate:     "http://www.youtube.com/embed/{id}",
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		DimensionsFirst: true,
		ExtraAttributes: []string{"allowfullscreen"},
	}
)

// Builtins returns the built-in provider tags in registration order.
func Builtins() []Tag {
	return []Tag{BlipTV, Vimeo, YouTube}
}

// URL interpolates the identifier into the tag's URL template.
func (t Tag) URL(identifier string) string {
	return strings.ReplaceAll(t.URLTemplate, Placeholder, identifier)
}

// Render builds the iframe fragment for the request.
func (t Tag) Render(req Request) string {
	var b strings.Builder
	b.Grow(len(t.URLTemplate) + len(req.Identifier) + 96)

	b.WriteString("<iframe ")
	if t.DimensionsFirst {
		t.writeDimensions(&b)
		b.WriteByte(' ')
		t.writeSrc(&b, req.Identifier)
	} else {
		t.writeSrc(&b, req.Identifier)
		b.WriteByte(' ')
		t.writeDimensions(&b)
	}
	b.WriteString(` frameborder="0"`)
	for _, attr := range t.ExtraAttributes {
		b.WriteByte(' ')
		b.WriteString(attr)
	}
	b.WriteString("></iframe>")

	return b.String()
}

// Renderer returns the tag as a Renderer.
func (t Tag) Renderer() Renderer {
	return func(identifier string) string {
		return t.Render(Request{Identifier: identifier})
	}
}

func (t Tag) writeSrc(b *strings.Builder, identifier string) {
	b.WriteString(`src="`)
	b.WriteString(t.URL(identifier))
	b.WriteByte('"')
}

func (t Tag) writeDimensions(b *strings.Builder) {
	b.WriteString(`width="`)
	b.WriteString(strconv.Itoa(t.Width))
	b.WriteString(`" height="`)
	b.WriteString(strconv.Itoa(t.Height))
	b.WriteByte('"')
}

// Escaped wraps a renderer so the identifier is path-escaped and then
// HTML-escaped before interpolation.
func Escaped(r Renderer) Renderer {
	return func(identifier string) string {
		return r(EscapeIdentifier(identifier))
	}
}

// EscapeIdentifier makes an identifier safe for a URL path segment inside a
// double-quoted HTML attribute.
func EscapeIdentifier(identifier string) string {
	return html.EscapeString(url.PathEscape(identifier))
}
