package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxview/internal/channel"
	"ctxview/internal/files"
	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

type fixture struct {
	root  string
	store *statestore.Store
	sel   *channel.Selections
	nav   *channel.Navigations
	srv   *Server
	http  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# Hello\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))

	gw, err := files.New(root, files.Options{})
	require.NoError(t, err)
	store := statestore.New(filepath.Join(t.TempDir(), "state.json"), nil)
	sel := channel.NewSelections(store, channel.Options{PollInterval: 10 * time.Millisecond})
	nav := channel.NewNavigations(store, channel.Options{})
	srv, err := New(Deps{Gateway: gw, Selections: sel, Navigations: nav, Version: "test"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return &fixture{root: root, store: store, sel: sel, nav: nav, srv: srv, http: ts}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func (f *fixture) post(t *testing.T, path string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestIndexAndStaticAssets(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"/", "/static/app.js", "/static/style.css", "/static/highlight.css"} {
		resp, err := http.Get(f.http.URL + p)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}

func TestListFiles(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/api/files/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []model.DirEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "README.md", entries[0].Name)
	assert.True(t, entries[1].IsDir)
}

func TestTraversalIsForbidden(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	if err := os.Symlink(outside, filepath.Join(f.root, "escape.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	resp, body := f.get(t, "/api/file-content/escape.txt")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", body["code"])
}

func TestFileContentIncludesHighlighting(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/file-content/main.go")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_text"])
	assert.Equal(t, "/raw/main.go", body["file_url"])
	lines, ok := body["highlighted"].([]any)
	require.True(t, ok)
	assert.Len(t, lines, 3)

	resp, _ = f.get(t, "/api/file-content/missing.txt")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRawServesBytes(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.http.URL + "/raw/README.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, "# Hello\n", buf.String())
}

func TestRenderMarkdown(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/render-markdown/README.md")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["html"], "<h1")
}

func TestRenderTexRejectsNonTex(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/render-tex/README.md")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestConfirmSelectionStoresSelection(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/confirm-selection", map[string]any{
		"file_path": "main.go", "start_line": 3, "end_line": 3, "selected_text": "func main() {}",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	got, ok := f.sel.Get(context.Background(), false)
	require.True(t, ok)
	assert.Equal(t, "func main() {}", got.SelectedText)

	resp, body = f.get(t, "/api/selection")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["selection"])

	resp, body = f.post(t, "/api/clear-selection", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["cleared"])
	_, ok = f.sel.Get(context.Background(), false)
	assert.False(t, ok)
}

func TestConfirmSelectionValidates(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/confirm-selection", map[string]any{
		"file_path": "main.go", "start_line": 4, "end_line": 2, "selected_text": "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	r, err := http.Post(f.http.URL+"/api/confirm-selection", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	_ = r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestNavigationStateAndAcknowledge(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/navigation-state")
	assert.Nil(t, body["navigation"])

	cmd, err := f.nav.Publish(context.Background(), model.CommandGotoLine, "main.go", model.LineTarget(3))
	require.NoError(t, err)

	_, body = f.get(t, "/api/navigation-state")
	navState, ok := body["navigation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "goto_line", navState["command"])
	assert.Equal(t, float64(3), navState["target"])
	assert.Equal(t, false, navState["executed"])

	_, body = f.post(t, "/api/navigation-executed", map[string]any{"timestamp": cmd.Timestamp - 1})
	assert.Equal(t, false, body["acknowledged"])

	_, body = f.post(t, "/api/navigation-executed", map[string]any{"timestamp": navState["timestamp"]})
	assert.Equal(t, true, body["acknowledged"])

	got, _ := f.nav.Fetch()
	assert.True(t, got.Executed)

	resp, _ := f.post(t, "/api/navigation-executed", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(os.Getpid()), body["pid"])
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recordingBroadcaster) Broadcast(kind string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recordingBroadcaster) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestStateWatcherBroadcastsNavigation(t *testing.T) {
	store := statestore.New(filepath.Join(t.TempDir(), "state.json"), nil)
	nav := channel.NewNavigations(store, channel.Options{})
	w := NewStateWatcher(store, nil)
	out := &recordingBroadcaster{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	// give the watcher time to register before the write
	time.Sleep(100 * time.Millisecond)
	_, err := nav.Publish(context.Background(), model.CommandSearchText, "a.md", model.TextTarget("x"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return out.has("navigation") }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestWebsocketReceivesBroadcast(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.srv.Hub().Broadcast("navigation", map[string]any{"command": "goto_line"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "navigation", msg.Type)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx, ln, nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
