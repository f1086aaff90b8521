// Package viewer starts, finds and stops the presentation server on behalf of
// the tool surface.
package viewer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

const healthTimeout = time.Second

// Announce merges the server address into the state document.
func Announce(store *statestore.Store, url string, pid int) {
	store.Update(func(doc statestore.Document) bool {
		if cur, ok := doc.Server(); ok && cur.URL == url && cur.PID == pid {
			return false
		}
		doc.SetServer(model.ServerInfo{URL: url, PID: pid})
		return true
	})
}

// Withdraw removes the server address if it still names pid. It reports
// whether anything was removed.
func Withdraw(store *statestore.Store, pid int) bool {
	removed := false
	store.Update(func(doc statestore.Document) bool {
		if cur, ok := doc.Server(); ok && cur.PID != pid {
			return false
		}
		removed = doc.ClearServer()
		return removed
	})
	return removed
}

// Lookup returns the announced server when its process is still alive.
func Lookup(store *statestore.Store) (model.ServerInfo, bool) {
	info, ok := store.Read().Server()
	if !ok || !processAlive(info.PID) {
		return model.ServerInfo{}, false
	}
	return info, true
}

// Healthy reports whether url answers /healthz with 200.
func Healthy(ctx context.Context, client *http.Client, url string) bool {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
