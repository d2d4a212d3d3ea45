//go:build property

package embed

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRenderProperties validates the renderer invariants over generated identifiers
func TestRenderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genTag := gen.OneConstOf(BlipTV, Vimeo, YouTube)

	properties.Property("render is deterministic", prop.ForAll(
		func(tag Tag, id string) bool {
			return tag.Render(Request{Identifier: id}) == tag.Render(Request{Identifier: id})
		},
		genTag,
		gen.AnyString(),
	))

	properties.Property("output is a single iframe with fixed dimensions", prop.ForAll(
		func(tag Tag, id string) bool {
			out := tag.Render(Request{Identifier: id})
			return strings.HasPrefix(out, "<iframe ") &&
				strings.HasSuffix(out, "></iframe>") &&
				strings.Count(out, "<iframe") == 1 &&
				strings.Contains(out, `width="640" height="510"`)
		},
		genTag,
		gen.AlphaString(),
	))

	properties.Property("identifier appears verbatim in the src URL", prop.ForAll(
		func(tag Tag, id string) bool {
			return strings.Contains(tag.Render(Request{Identifier: id}), `src="`+tag.URL(id)+`"`)
		},
		genTag,
		gen.AnyString(),
	))

	properties.Property("escaped identifiers never close the src attribute", prop.ForAll(
		func(tag Tag, id string) bool {
			out := Escaped(tag.Renderer())(id)
			return strings.Count(out, `"`) == strings.Count(tag.Render(Request{}), `"`)
		},
		genTag,
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
