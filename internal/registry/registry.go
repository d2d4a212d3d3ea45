// Package registry maps directive tag names to embed renderers.
//
// A Registry is populated once at startup by explicit Register calls and read
// by every host: the directive expander, html/template via FuncMap and templ
// via Component. Registering a name twice replaces the earlier renderer.
package registry

import (
	"context"
	"html/template"
	"io"
	"sort"
	"sync"
	"unicode"

	"github.com/a-h/templ"

	"github.com/conneroisu/vidembed/internal/embed"
	"github.com/conneroisu/vidembed/internal/errors"
)

// Registry manages the renderers known to a host
type Registry struct {
	renderers map[string]embed.Renderer
	tags      map[string]embed.Tag
	escape    bool
	mutex     sync.RWMutex
}

// Option configures a Registry
type Option func(*Registry)

// WithEscaping escapes identifiers before they reach any renderer.
func WithEscaping(enabled bool) Option {
	return func(r *Registry) {
		r.escape = enabled
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		renderers: make(map[string]embed.Renderer),
		tags:      make(map[string]embed.Tag),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default creates a registry holding the built-in providers
func Default(opts ...Option) *Registry {
	r := New(opts...)
	for _, tag := range embed.Builtins() {
		r.RegisterTag(tag)
	}
	return r
}

// Register adds or replaces the renderer for name
func (r *Registry) Register(name string, renderer embed.Renderer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.tags, name)
	r.renderers[name] = renderer
}

// RegisterTag registers a tag under its provider name
func (r *Registry) RegisterTag(tag embed.Tag) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.renderers[tag.Provider] = tag.Renderer()
	r.tags[tag.Provider] = tag
}

// Render renders identifier with the renderer registered under name
func (r *Registry) Render(name, identifier string) (string, error) {
	renderer, ok := r.Get(name)
	if !ok {
		return "", errors.ErrUnknownTag(name)
	}
	return renderer(identifier), nil
}

// Get retrieves the renderer for name, applying escaping when enabled
func (r *Registry) Get(name string) (embed.Renderer, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	renderer, exists := r.renderers[name]
	if !exists {
		return nil, false
	}
	if r.escape {
		renderer = embed.Escaped(renderer)
	}
	return renderer, true
}

// Tag returns the tag definition behind name when it was registered with
// RegisterTag
func (r *Registry) Tag(name string) (embed.Tag, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tag, ok := r.tags[name]
	return tag, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.renderers[name]
	return ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove removes name from the registry
func (r *Registry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.renderers, name)
	delete(r.tags, name)
}

// Count returns the number of registered renderers
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.renderers)
}

// Escaping reports whether identifiers are escaped before rendering
func (r *Registry) Escaping() bool {
	return r.escape
}

// FuncMap exposes every registered renderer as an html/template function of
// the same name, e.g. {{ youtube "abc123" }}, plus embed, which takes the tag
// name first: {{ embed .Tag .ID }}. Names that are not valid template
// identifiers are reachable only through embed. A tag registered as "embed"
// replaces the helper.
func (r *Registry) FuncMap() template.FuncMap {
	funcs := template.FuncMap{
		"embed": func(name, identifier string) (template.HTML, error) {
			out, err := r.Render(name, identifier)
			return template.HTML(out), err
		},
	}
	for _, name := range r.Names() {
		if !isIdentifier(name) {
			continue
		}
		name := name
		funcs[name] = func(identifier string) (template.HTML, error) {
			out, err := r.Render(name, identifier)
			return template.HTML(out), err
		}
	}
	return funcs
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		if !unicode.IsLetter(c) && c != '_' && (i == 0 || !unicode.IsDigit(c)) {
			return false
		}
	}
	return true
}

// Component returns a templ component that renders the embed. An unknown
// name surfaces as the component's render error.
func (r *Registry) Component(name, identifier string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := r.Render(name, identifier)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}
