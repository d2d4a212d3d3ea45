package directive

import (
	"strings"
	"testing"

	"github.com/conneroisu/vidembed/internal/registry"
)

// FuzzParse checks that arbitrary page source never panics the parser and
// that successful parses cover the whole input.
func FuzzParse(f *testing.F) {
	f.Add("{% youtube abc123 %}")
	f.Add("text {%- vimeo 1 -%} text")
	f.Add("{% raw %}{% youtube x %}{% endraw %}")
	f.Add("{% youtube")
	f.Add("{%%}")
	f.Add("{% raw %}")
	f.Add("%}{%")
	f.Add("{% youtube \"><script>alert(1)</script> %}")
	f.Add("Unicode🎯 {% vimeo 💻 %}")

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 10000 {
			t.Skip("source too large")
		}

		nodes, err := Parse(src)
		if err != nil {
			return
		}

		covered := 0
		for _, node := range nodes {
			if node.Directive != nil {
				if node.Directive.Name == "" {
					t.Errorf("directive with empty name in %q", src)
				}
				if !strings.HasPrefix(node.Directive.Raw, openDelim) || !strings.HasSuffix(node.Directive.Raw, closeDelim) {
					t.Errorf("directive raw text %q is not delimited", node.Directive.Raw)
				}
				covered += len(node.Directive.Raw)
				continue
			}
			covered += len(node.Text)
		}

		if !strings.Contains(src, "raw") && covered != len(src) {
			t.Errorf("nodes cover %d bytes of %d in %q", covered, len(src), src)
		}
	})
}

// FuzzExpandKeep checks that expanding with the keep policy and no registered
// tags reproduces the input exactly.
func FuzzExpandKeep(f *testing.F) {
	f.Add("plain")
	f.Add("{% gist 1 %} and {% youtube 2 %}")
	f.Add("{% a %}{% b %}")
	f.Add("a\n  {%- nope x -%}  \nb")

	expander := NewExpander(registry.New(), PolicyKeep, nil)

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 10000 || strings.Contains(src, "raw") {
			t.Skip()
		}

		out, err := expander.ExpandString(src)
		if err != nil {
			return
		}
		if out != src {
			t.Errorf("keep policy changed %q into %q", src, out)
		}
	})
}
