package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxview/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"), nil)
}

func readRaw(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	doc := s.Read()
	assert.Empty(t, doc)
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "read must not create the file")
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	doc := NewDocument()
	doc.SetSelection(model.Selection{FilePath: "a.go", StartLine: 1, EndLine: 3, SelectedText: "x", Timestamp: 10})
	doc.SetServer(model.ServerInfo{URL: "http://127.0.0.1:8765", PID: 42})
	s.Write(doc)

	got := s.Read()
	sel, ok := got.Selection()
	require.True(t, ok)
	assert.Equal(t, "a.go", sel.FilePath)
	assert.Equal(t, 3, sel.EndLine)
	info, ok := got.Server()
	require.True(t, ok)
	assert.Equal(t, 42, info.PID)
}

func TestCorruptDocumentIsMovedToBackupOnce(t *testing.T) {
	s := newTestStore(t)
	garbage := []byte("{not json")
	require.NoError(t, os.WriteFile(s.Path(), garbage, 0o600))

	assert.Empty(t, s.Read())

	backup, err := os.ReadFile(s.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, garbage, backup)

	require.NoError(t, os.WriteFile(s.BackupPath(), []byte("sentinel"), 0o600))
	assert.Empty(t, s.Read())
	again, err := os.ReadFile(s.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(again), "second read must not create a new backup")
}

func TestNonObjectDocumentsAreCorrupt(t *testing.T) {
	for _, body := range []string{"null", "[]", "42", ""} {
		s := newTestStore(t)
		require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o600))
		assert.Empty(t, s.Read(), "body %q", body)
		_, err := os.Stat(s.BackupPath())
		assert.NoError(t, err, "body %q should be backed up", body)
	}
}

func TestPartialSelectionIsDroppedAndPersisted(t *testing.T) {
	s := newTestStore(t)
	body := `{"selection":{"file_path":"x","start_line":1},"theme":"dark"}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o600))

	doc := s.Read()
	_, ok := doc.Selection()
	assert.False(t, ok)
	assert.False(t, doc.Has("selection"))

	onDisk := readRaw(t, s.Path())
	assert.NotContains(t, onDisk, "selection")
	assert.Equal(t, "dark", onDisk["theme"])
}

func TestInvalidNavigationIsDropped(t *testing.T) {
	s := newTestStore(t)
	body := `{"navigation":{"command":"teleport","file_path":"x","target":1,"timestamp":1}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o600))

	doc := s.Read()
	assert.False(t, doc.Has("navigation"))
	assert.NotContains(t, readRaw(t, s.Path()), "navigation")
}

func TestNullSelectionIsDropped(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"selection":null}`), 0o600))
	assert.False(t, s.Read().Has("selection"))
}

func TestUpdatePreservesUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"extra":{"nested":[1,2]},"server_url":"http://h"}`), 0o600))

	s.Update(func(d Document) bool {
		d.SetNavigation(model.NavigationCommand{Command: model.CommandGotoLine, FilePath: "f", Target: model.LineTarget(2), Timestamp: 5})
		return true
	})

	onDisk := readRaw(t, s.Path())
	assert.Equal(t, map[string]any{"nested": []any{float64(1), float64(2)}}, onDisk["extra"])
	assert.Equal(t, "http://h", onDisk["server_url"])
	assert.Contains(t, onDisk, "navigation")
}

func TestUpdateWithoutChangeDoesNotWrite(t *testing.T) {
	s := newTestStore(t)
	s.Update(func(Document) bool { return false })
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		doc := s.Read()
		doc["counter"] = json.RawMessage([]byte{byte('0' + i)})
		s.Write(doc)
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions differ on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	s := New(filepath.Join(dir, "state.json"), nil)
	assert.NotPanics(t, func() { s.Write(NewDocument()) })
	assert.Empty(t, s.Read())
}

func TestWriteCreatesParentDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "deeper", "state.json"), nil)
	doc := NewDocument()
	doc.SetServer(model.ServerInfo{URL: "http://x", PID: 1})
	s.Write(doc)
	_, ok := s.Read().Server()
	assert.True(t, ok)
}

func TestConcurrentStoresNeverSeePartialDocuments(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("rename over an open file fails on windows")
	}
	path := filepath.Join(t.TempDir(), "state.json")
	// Two stores on one path stand in for the MCP process and the viewer.
	stores := []*Store{New(path, nil), New(path, nil)}

	seed := NewDocument()
	seed["marker"] = json.RawMessage(`"keep"`)
	seed.SetSelection(model.Selection{FilePath: "seed.txt", StartLine: 1, EndLine: 1, SelectedText: strings.Repeat("s", 4096), Timestamp: 1})
	stores[0].Write(seed)

	const writes = 200
	var (
		writers sync.WaitGroup
		readers sync.WaitGroup
		bad     atomic.Int64
		reads   atomic.Int64
	)
	done := make(chan struct{})

	for i, s := range stores {
		text := strings.Repeat(string(rune('a'+i)), 4096)
		writers.Add(1)
		go func() {
			defer writers.Done()
			for n := 0; n < writes; n++ {
				s.Update(func(doc Document) bool {
					doc.SetSelection(model.Selection{FilePath: "w.txt", StartLine: 1, EndLine: n + 1, SelectedText: text, Timestamp: float64(n + 2)})
					return true
				})
			}
		}()

		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				doc := s.Read()
				reads.Add(1)
				sel, ok := doc.Selection()
				if !ok || len(sel.SelectedText) != 4096 || !doc.Has("marker") {
					bad.Add(1)
				}
			}
		}()
	}

	writers.Wait()
	close(done)
	readers.Wait()

	assert.Positive(t, reads.Load())
	assert.Zero(t, bad.Load(), "reads observed a partial or empty document")
	_, err := os.Stat(stores[0].BackupPath())
	assert.True(t, os.IsNotExist(err), "no read may treat the file as corrupt")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}
