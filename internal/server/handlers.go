package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/vidembed/internal/embed"
	"github.com/conneroisu/vidembed/internal/errors"
	"github.com/conneroisu/vidembed/internal/version"
)

// reloadScript is injected into served pages when live reload is on.
const reloadScript = `<script>
(function() {
  var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  function connect() {
    var ws = new WebSocket(proto + '//' + location.host + '/ws');
    ws.onmessage = function(event) {
      var msg = JSON.parse(event.data);
      if (msg.type === 'reload') {
        location.reload();
      } else if (msg.type === 'build_error') {
        var old = document.getElementById('vidembed-error-overlay');
        if (old) { old.remove(); }
        document.body.insertAdjacentHTML('beforeend', msg.content);
      }
    };
    ws.onclose = function() { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	buildStatus := "disabled"
	if s.pipeline != nil {
		buildStatus = "healthy"
		if s.pipeline.Errors().HasErrors() {
			buildStatus = "error"
		}
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"registry": map[string]interface{}{"status": "healthy", "tags": s.registry.Count()},
			"build":    map[string]interface{}{"status": buildStatus},
			"clients":  s.hub.Count(),
		},
	})
}

// handleTags lists the registered tags. Tags registered as bare renderers
// only carry their name.
func (s *PreviewServer) handleTags(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	tags := make([]embed.Tag, 0, len(names))
	for _, name := range names {
		tag, ok := s.registry.Tag(name)
		if !ok {
			tag = embed.Tag{Provider: name}
		}
		tags = append(tags, tag)
	}
	s.writeJSON(w, r, http.StatusOK, tags)
}

// handleRender renders one embed, e.g. /render/youtube/dQw4w9WgXcQ
func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	id := r.PathValue("id")

	var buf bytes.Buffer
	if err := s.registry.Component(tag, id).Render(r.Context(), &buf); err != nil {
		status := http.StatusInternalServerError
		if errors.IsUnknownTag(err) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, r, status, map[string]string{"error": err.Error(), "tag": tag})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// previewSampleID is rendered by the preview page when no id is given.
const previewSampleID = "dQw4w9WgXcQ"

const previewTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>vidembed preview</title></head>
<body>
<h1>Embed preview</h1>
<form method="get">
<input name="id" value="{{ .ID }}">{{ if .Tag }}<input type="hidden" name="tag" value="{{ .Tag }}">{{ end }}
<button type="submit">Render</button>
</form>
{{ range .Tags }}<section class="embed" data-tag="{{ . }}">
<h2>{{ . }}</h2>
{{ embed . $.ID }}
</section>
{{ end }}</body>
</html>
`

type previewPage struct {
	ID   string
	Tag  string
	Tags []string
}

// handlePreview renders every registered tag, or only ?tag=, with ?id= on
// one page through the registry's template functions.
func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	page := previewPage{
		ID:   r.URL.Query().Get("id"),
		Tag:  r.URL.Query().Get("tag"),
		Tags: s.registry.Names(),
	}
	if page.ID == "" {
		page.ID = previewSampleID
	}
	if page.Tag != "" {
		if !s.registry.Has(page.Tag) {
			s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": errors.ErrUnknownTag(page.Tag).Error(), "tag": page.Tag})
			return
		}
		page.Tags = []string{page.Tag}
	}

	tmpl, err := template.New("preview").Funcs(s.registry.FuncMap()).Parse(previewTemplate)
	if err != nil {
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render preview page")
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleBuildStatus returns metrics and errors of the last build. The file
// and tag query parameters narrow the error list; status always reflects
// the whole build.
func (s *PreviewServer) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "build pipeline disabled"})
		return
	}

	metrics := s.pipeline.GetMetrics()
	collector := s.pipeline.Errors()

	status := "healthy"
	if collector.HasErrors() {
		status = "error"
	}

	buildErrors := filterErrors(collector, r.URL.Query().Get("file"), r.URL.Query().Get("tag"))

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":        status,
		"total_builds":  metrics.TotalBuilds,
		"pages":         metrics.Pages,
		"copied":        metrics.Copied,
		"embeds":        metrics.Embeds,
		"failed":        metrics.Failed,
		"cache_hits":    metrics.CacheHits,
		"last_duration": metrics.LastDuration.String(),
		"errors":        buildErrors,
		"timestamp":     time.Now().Unix(),
	})
}

// filterErrors selects the collected errors for file and tag; an empty
// value matches everything.
func filterErrors(collector *errors.ErrorCollector, file, tag string) []errors.BuildError {
	var selected []errors.BuildError
	switch {
	case file != "":
		selected = collector.GetErrorsByFile(filepath.FromSlash(path.Clean(file)))
		if tag != "" {
			matching := selected[:0]
			for _, be := range selected {
				if be.Tag == tag {
					matching = append(matching, be)
				}
			}
			selected = matching
		}
	case tag != "":
		selected = collector.GetErrorsByTag(tag)
	default:
		selected = collector.GetErrors()
	}

	if selected == nil {
		selected = []errors.BuildError{}
	}
	return selected
}

// handleRebuild runs a build now
func (s *PreviewServer) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "build pipeline disabled"})
		return
	}

	report, err := s.pipeline.Build(r.Context())
	if report == nil {
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, r, status, map[string]interface{}{
		"pages":    len(report.Pages),
		"copied":   report.Copied,
		"embeds":   report.Embeds(),
		"errors":   report.Errors,
		"duration": report.Duration.String(),
	})
}

// handleBuildCache clears the build cache
func (s *PreviewServer) handleBuildCache(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "build pipeline disabled"})
		return
	}
	s.pipeline.ClearCache()
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":   "Cache cleared successfully",
		"timestamp": time.Now().Unix(),
	})
}

// handleStatic serves files from Root. HTML pages get the live reload script
// and, while the last build is failing, the error overlay.
func (s *PreviewServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	full := filepath.Join(s.opts.Root, filepath.FromSlash(name))

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ext := strings.ToLower(filepath.Ext(full))
	if ext != ".html" && ext != ".htm" {
		http.ServeFile(w, r, full)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		http.Error(w, "Failed to read page", http.StatusInternalServerError)
		s.logger.Error(r.Context(), err, "Failed to read page", "path", full)
		return
	}

	var extra strings.Builder
	if s.pipeline != nil {
		extra.WriteString(s.pipeline.Errors().ErrorOverlay())
	}
	if s.opts.LiveReload {
		extra.WriteString(reloadScript)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	_, _ = w.Write([]byte(injectBeforeBodyClose(string(data), extra.String())))
}

// injectBeforeBodyClose inserts snippet before the last </body>, or appends
// it when the page has none.
func injectBeforeBodyClose(page, snippet string) string {
	if snippet == "" {
		return page
	}
	idx := strings.LastIndex(strings.ToLower(page), "</body>")
	if idx < 0 {
		return page + snippet
	}
	return page[:idx] + snippet + page[idx:]
}
