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

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/whiteboard/internal/config"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Board</title></head>
<body>
  <nav>
    <a class="module" data-module="link" id="to-notes" data-href="notes">Notes</a>
    <a class="module" data-module="link" id="to-home" data-href="/">Home</a>
  </nav>
  <main id="app"></main>
  <footer class="module" data-module="relay" data-messages="saved"></footer>
</body>
</html>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), indexPage)
	writeFile(t, filepath.Join(dir, "templates", "home.html"), `<h1>Home</h1>`)
	writeFile(t, filepath.Join(dir, "templates", "notes.html"),
		`<h1>Notes</h1><div class="module" data-module="partial" data-template="list.html"></div>`)
	writeFile(t, filepath.Join(dir, "templates", "list.html"), `<ul><li>one</li></ul>`)

	cfg := config.Default()
	cfg.App.Page = filepath.Join(dir, "index.html")
	cfg.App.Templates = filepath.Join(dir, "templates")
	cfg.Watch.Enabled = false
	cfg.Routes = []config.RouteConfig{
		{Pattern: "^$", Template: "home.html", Title: "Home"},
		{Pattern: "notes", Match: "exact", Template: "notes.html", Title: "Notes"},
	}
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(testConfig(t), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, f Frame) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, f))
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

// ready opens a session at "/" and consumes the frames of the first render.
func ready(t *testing.T, ctx context.Context, conn *websocket.Conn) Frame {
	t.Helper()
	sendFrame(t, ctx, conn, Frame{Type: FrameReady, Path: "/", Title: "Board"})

	title := readFrame(t, ctx, conn)
	require.Equal(t, FrameTitle, title.Type)
	assert.Equal(t, "Home", title.Title)

	render := readFrame(t, ctx, conn)
	require.Equal(t, FrameRender, render.Type)
	return render
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, status)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(0), health["sessions"])
	assert.Equal(t, false, health["watching"])
}

func TestServer_HealthWhileWatcherStarts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Enabled = true
	cfg.Watch.Paths = []string{cfg.App.Templates}
	srv := New(cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- srv.startWatcher(ctx) }()

	watching := func() bool {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var health map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return false
		}
		return health["watching"] == true
	}
	require.Eventually(t, watching, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, <-started)

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	require.NoError(t, srv.Shutdown(shutdownCtx))
}

func TestServer_PagePrerendered(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := get(t, ts.URL+"/notes")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<title>Notes</title>")
	assert.Contains(t, body, "<h1>Notes</h1>")
	assert.Contains(t, body, "<li>one</li>")
	assert.Contains(t, body, `id="to-notes" data-href="notes" data-active="true"`)
	assert.Contains(t, body, `data-whiteboard="client"`)

	_, body = get(t, ts.URL+"/")
	assert.Contains(t, body, "<h1>Home</h1>")
	assert.NotContains(t, body, "<h1>Notes</h1>")
}

func TestServer_PageBootFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.Page = filepath.Join(t.TempDir(), "missing.html")
	ts := httptest.NewServer(New(cfg, nil).Handler())
	defer ts.Close()

	status, _ := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestSession_ReadyRenders(t *testing.T) {
	srv, ts := newTestServer(t)
	conn, ctx := dial(t, ts)

	render := ready(t, ctx, conn)
	assert.Contains(t, render.HTML, "<h1>Home</h1>")
	assert.Contains(t, render.HTML, `id="to-home" data-href="/" data-active="true"`)
	assert.Equal(t, 1, srv.Sessions())
}

func TestSession_FramesBeforeReady(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)

	sendFrame(t, ctx, conn, Frame{Type: FrameNavigate, Fragment: "notes"})

	f := readFrame(t, ctx, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Message, "not ready")
}

func TestSession_Navigate(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	sendFrame(t, ctx, conn, Frame{Type: FrameNavigate, Fragment: "notes", Trigger: true})

	push := readFrame(t, ctx, conn)
	require.Equal(t, FramePushState, push.Type)
	assert.Equal(t, "/notes", push.URL)

	title := readFrame(t, ctx, conn)
	require.Equal(t, FrameTitle, title.Type)
	assert.Equal(t, "Notes", title.Title)

	render := readFrame(t, ctx, conn)
	require.Equal(t, FrameRender, render.Type)
	assert.Contains(t, render.HTML, "<li>one</li>")
	assert.Contains(t, render.HTML, `id="to-notes" data-href="notes" data-active="true"`)
}

func TestSession_LinkClick(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	sendFrame(t, ctx, conn, Frame{Type: FrameMessage, Name: "navigate", Data: json.RawMessage(`"to-notes"`)})

	push := readFrame(t, ctx, conn)
	require.Equal(t, FramePushState, push.Type)
	assert.Equal(t, "/notes", push.URL)
	assert.Equal(t, FrameTitle, readFrame(t, ctx, conn).Type)
	assert.Contains(t, readFrame(t, ctx, conn).HTML, "<h1>Notes</h1>")
}

func TestSession_PopState(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	sendFrame(t, ctx, conn, Frame{Type: FramePopState, Path: "/notes"})

	title := readFrame(t, ctx, conn)
	require.Equal(t, FrameTitle, title.Type)
	assert.Equal(t, "Notes", title.Title)
	assert.Contains(t, readFrame(t, ctx, conn).HTML, "<h1>Notes</h1>")
}

func TestSession_RelayedMessage(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	sendFrame(t, ctx, conn, Frame{Type: FrameMessage, Name: "saved", Data: json.RawMessage(`{"id":1}`)})

	msg := readFrame(t, ctx, conn)
	require.Equal(t, FrameMessage, msg.Type)
	assert.Equal(t, "saved", msg.Name)
	assert.JSONEq(t, `{"id":1}`, string(msg.Data))
	assert.Equal(t, FrameRender, readFrame(t, ctx, conn).Type)
}

func TestSession_MalformedFrame(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":`)))

	f := readFrame(t, ctx, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Contains(t, f.Message, "malformed frame")
	assert.Equal(t, FrameRender, readFrame(t, ctx, conn).Type)
}

func TestServer_Reload(t *testing.T) {
	srv, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	assert.Equal(t, 1, srv.Reload())
	assert.Equal(t, FrameReload, readFrame(t, ctx, conn).Type)
}

func TestServer_SessionClosed(t *testing.T) {
	srv, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	_, body := get(t, ts.URL+"/metrics")
	assert.Contains(t, body, "whiteboard_sessions_active 1")
	assert.Contains(t, body, "whiteboard_modules_started_total 3")
	assert.Contains(t, body, `whiteboard_frames_received_total{type="ready"} 1`)
	assert.Contains(t, body, "whiteboard_route_dispatch_duration_seconds_count 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestServer_Shutdown(t *testing.T) {
	srv, ts := newTestServer(t)
	conn, ctx := dial(t, ts)
	ready(t, ctx, conn)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown(shutdownCtx) }()

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	require.NoError(t, <-done)
	require.NoError(t, srv.Shutdown(shutdownCtx))
}
