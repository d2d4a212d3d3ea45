package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/vidembed/internal/build"
	"github.com/conneroisu/vidembed/internal/directive"
	"github.com/conneroisu/vidembed/internal/embed"
	"github.com/conneroisu/vidembed/internal/errors"
	"github.com/conneroisu/vidembed/internal/registry"
	"github.com/conneroisu/vidembed/internal/watcher"
)

type fixture struct {
	server *PreviewServer
	http   *httptest.Server
	src    string
	dst    string
}

func newFixture(t *testing.T, liveReload bool) *fixture {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))

	reg := registry.Default()
	pipeline := build.NewPipeline(build.Options{
		Source:      src,
		Destination: dst,
		Extensions:  []string{".html"},
		Workers:     2,
	}, directive.NewExpander(reg, directive.PolicyError, nil), nil)

	srv := New(Options{Root: dst, Address: "localhost:0", LiveReload: liveReload}, reg, pipeline, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{server: srv, http: ts, src: src, dst: dst}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	require.Eventually(t, func() bool { return f.server.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) UpdateMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHandleRender(t *testing.T) {
	f := newFixture(t, false)

	testCases := []struct {
		path     string
		status   int
		expected string
	}{
		{
			path:     "/render/youtube/abc123",
			status:   http.StatusOK,
			expected: `<iframe width="640" height="510" src="http://www.youtube.com/embed/abc123" frameborder="0" allowfullscreen></iframe>`,
		},
		{
			path:     "/render/bliptv/AYLCsikC",
			status:   http.StatusOK,
			expected: `<iframe src="http://blip.tv/play/AYLCsikC.html?p=1" width="640" height="510" frameborder="0" allowfullscreen></iframe>`,
		},
		{
			path:     "/render/vimeo/12345",
			status:   http.StatusOK,
			expected: `<iframe src="http://player.vimeo.com/video/12345" width="640" height="510" frameborder="0" webkitAllowFullScreen mozallowfullscreen allowFullScreen></iframe>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := f.get(t, tc.path)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.Equal(t, tc.expected, body)
		})
	}
}

func TestHandlePreview(t *testing.T) {
	f := newFixture(t, false)
	f.server.registry.RegisterTag(embed.Tag{
		Provider:    "my-video",
		URLTemplate: "https://videos.example.com/{id}",
		Width:       320,
		Height:      240,
	})

	resp, body := f.get(t, "/preview?id=abc123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)

	var tags []string
	doc.Find("section.embed").Each(func(_ int, section *goquery.Selection) {
		tags = append(tags, section.AttrOr("data-tag", ""))
		assert.Equal(t, 1, section.Find("iframe").Length())
	})
	assert.Equal(t, []string{"bliptv", "my-video", "vimeo", "youtube"}, tags)
	assert.Equal(t, "http://www.youtube.com/embed/abc123",
		doc.Find(`section[data-tag="youtube"] iframe`).AttrOr("src", ""))
	assert.Equal(t, "https://videos.example.com/abc123",
		doc.Find(`section[data-tag="my-video"] iframe`).AttrOr("src", ""))
	assert.Equal(t, "abc123", doc.Find(`input[name="id"]`).AttrOr("value", ""))

	_, body = f.get(t, "/preview")
	assert.Contains(t, body, `src="http://player.vimeo.com/video/`+previewSampleID+`"`)

	_, body = f.get(t, `/preview?tag=vimeo&id=a%22b`)
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("section.embed").Length())
	assert.Equal(t, `a"b`, doc.Find(`input[name="id"]`).AttrOr("value", ""))
	assert.Equal(t, "vimeo", doc.Find(`input[name="tag"]`).AttrOr("value", ""))

	resp, _ = f.get(t, "/preview?tag=gist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRender_UnknownTag(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/render/gist/42")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "gist", payload["tag"])
	assert.Contains(t, payload["error"], "gist")
}

func TestHandleTags(t *testing.T) {
	f := newFixture(t, false)
	f.server.registry.Register("custom", func(id string) string { return id })

	resp, body := f.get(t, "/tags")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tags []embed.Tag
	require.NoError(t, json.Unmarshal([]byte(body), &tags))
	require.Len(t, tags, 4)
	assert.Equal(t, "bliptv", tags[0].Provider)
	assert.Equal(t, "custom", tags[1].Provider)
	assert.Empty(t, tags[1].URLTemplate)
	assert.Equal(t, "youtube", tags[3].Provider)
	assert.True(t, tags[3].DimensionsFirst)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Server"), "vidembed/"))

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	checks := health["checks"].(map[string]interface{})
	assert.Equal(t, float64(3), checks["registry"].(map[string]interface{})["tags"])
}

func TestHandleStatic(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(f.dst, "index.html"), []byte("<html><body><p>hi</p></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dst, "style.css"), []byte("p{}"), 0o644))

	resp, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "<html><body><p>hi</p><script>"))
	assert.True(t, strings.HasSuffix(body, "</script></body></html>"))

	resp, body = f.get(t, "/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p{}", body)

	resp, _ = f.get(t, "/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, "/../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleStatic_NoLiveReload(t *testing.T) {
	f := newFixture(t, false)
	page := "<html><body>plain</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(f.dst, "page.html"), []byte(page), 0o644))

	_, body := f.get(t, "/page.html")
	assert.Equal(t, page, body)
}

func TestWebSocketBroadcast(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t)

	f.server.Broadcast(UpdateMessage{Type: MessageReload, Target: "index.html"})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageReload, msg.Type)
	assert.Equal(t, "index.html", msg.Target)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHandleChanges_RebuildsAndNotifies(t *testing.T) {
	f := newFixture(t, true)
	conn := f.dial(t)

	require.NoError(t, os.WriteFile(filepath.Join(f.src, "index.html"),
		[]byte("<body>{% youtube abc123 %}</body>"), 0o644))

	events := []watcher.ChangeEvent{{Type: watcher.EventTypeCreated, Path: filepath.Join(f.src, "index.html")}}
	require.NoError(t, f.server.HandleChanges(context.Background(), events))

	assert.Equal(t, MessageReload, readMessage(t, conn).Type)

	_, body := f.get(t, "/")
	assert.Contains(t, body, `src="http://www.youtube.com/embed/abc123"`)
	assert.NotContains(t, body, `id="vidembed-error-overlay"`)

	// A failing page keeps the old output and shows the overlay
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "broken.html"),
		[]byte("<body>{% gist 1 %}</body>"), 0o644))
	require.NoError(t, f.server.HandleChanges(context.Background(), events))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuildError, msg.Type)
	assert.Contains(t, msg.Content, `id="vidembed-error-overlay"`)

	_, body = f.get(t, "/")
	assert.Contains(t, body, `id="vidembed-error-overlay"`)

	resp, body := f.get(t, "/api/build")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "error", status["status"])
	assert.Equal(t, float64(2), status["total_builds"])
}

func TestBuildStatus_FiltersErrors(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(f.src, "posts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "a.html"), []byte("{% gist 1 %}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "posts", "b.html"), []byte("x\n{% codepen 2 %}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "ok.html"), []byte("{% vimeo 1 %}"), 0o644))

	_, err := f.server.pipeline.Build(context.Background())
	require.Error(t, err)

	status := func(t *testing.T, query string) (string, []errors.BuildError) {
		t.Helper()
		resp, body := f.get(t, "/api/build"+query)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var payload struct {
			Status string              `json:"status"`
			Errors []errors.BuildError `json:"errors"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &payload))
		require.NotNil(t, payload.Errors)
		return payload.Status, payload.Errors
	}

	testCases := []struct {
		name  string
		query string
		files []string
	}{
		{"all", "", []string{"a.html", filepath.Join("posts", "b.html")}},
		{"by file", "?file=posts/b.html", []string{filepath.Join("posts", "b.html")}},
		{"by uncleaned file", "?file=./posts//b.html", []string{filepath.Join("posts", "b.html")}},
		{"by tag", "?tag=gist", []string{"a.html"}},
		{"file and tag", "?file=posts/b.html&tag=codepen", []string{filepath.Join("posts", "b.html")}},
		{"file and other tag", "?file=posts/b.html&tag=gist", []string{}},
		{"page without errors", "?file=ok.html", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buildStatus, buildErrors := status(t, tc.query)
			assert.Equal(t, "error", buildStatus)

			files := make([]string, 0, len(buildErrors))
			for _, be := range buildErrors {
				files = append(files, be.File)
			}
			assert.Equal(t, tc.files, files)
		})
	}

	_, buildErrors := status(t, "?file=posts/b.html")
	require.Len(t, buildErrors, 1)
	assert.Equal(t, "codepen", buildErrors[0].Tag)
	assert.Equal(t, 2, buildErrors[0].Line)
}

func TestRebuildEndpoint(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(f.src, "a.html"), []byte("{% vimeo 1 %}"), 0o644))

	resp, err := http.Post(f.http.URL+"/api/build", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, float64(1), payload["pages"])
	assert.Equal(t, float64(1), payload["embeds"])

	req, err := http.NewRequest(http.MethodDelete, f.http.URL+"/api/build/cache", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusOK, del.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	srv := New(Options{Root: t.TempDir(), Address: "127.0.0.1:0"}, registry.Default(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/render/youtube/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestInjectBeforeBodyClose(t *testing.T) {
	testCases := []struct {
		name     string
		page     string
		snippet  string
		expected string
	}{
		{"no snippet", "<body></body>", "", "<body></body>"},
		{"body", "<body>x</body>", "<s/>", "<body>x<s/></body>"},
		{"uppercase", "<BODY>x</BODY>", "<s/>", "<BODY>x<s/></BODY>"},
		{"fragment", "<p>x</p>", "<s/>", "<p>x</p><s/>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, injectBeforeBodyClose(tc.page, tc.snippet))
		})
	}
}
