package web

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

// Broadcaster receives state changes; *Hub implements it.
type Broadcaster interface {
	Broadcast(kind string, data any)
}

// StateWatcher notices rewrites of the state document and announces
// navigation and selection changes. The state file is replaced by rename, so
// the watch is on its directory.
type StateWatcher struct {
	store    *statestore.Store
	logger   *zap.Logger
	debounce time.Duration

	lastNav *model.NavigationCommand
	lastSel *model.Selection
}

func NewStateWatcher(store *statestore.Store, logger *zap.Logger) *StateWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateWatcher{store: store, logger: logger.Named("watcher"), debounce: 50 * time.Millisecond}
}

func (w *StateWatcher) Run(ctx context.Context, out Broadcaster) error {
	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(dir); err != nil {
		return err
	}

	base := filepath.Base(w.store.Path())
	w.check(out)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if pending == nil {
				pending = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("state watch error", zap.Error(err))
		case <-pending:
			pending = nil
			w.check(out)
		}
	}
}

// check reads the document and broadcasts whatever differs from the last
// observed state.
func (w *StateWatcher) check(out Broadcaster) {
	doc := w.store.Read()

	nav, _ := doc.Navigation()
	if !sameNavigation(nav, w.lastNav) {
		w.lastNav = nav
		if nav != nil {
			out.Broadcast("navigation", nav)
		}
	}

	sel, _ := doc.Selection()
	if !sameSelection(sel, w.lastSel) {
		w.lastSel = sel
		out.Broadcast("selection", sel)
	}
}

func sameNavigation(a, b *model.NavigationCommand) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Timestamp == b.Timestamp && a.Executed == b.Executed
}

func sameSelection(a, b *model.Selection) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Timestamp == b.Timestamp
}
